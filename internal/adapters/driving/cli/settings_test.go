package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsCmd_Use(t *testing.T) {
	assert.Equal(t, "settings", settingsCmd.Use)
}

func TestSettingsShowCmd_PrintsDefaults(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "chunk_size:            1000")
	assert.Contains(t, out, "search_algorithm:      hybrid")
	assert.Contains(t, out, "similarity_threshold:  0.30")
	assert.Contains(t, out, "quality_threshold:     0.25")
	assert.Contains(t, out, "query_timeout:         10s")
}

func TestSettingsCmd_DefaultsToShow(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "Current Settings")
}

func TestSettingsSetCmd_PersistsValue(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "settings", "set", "chunk_size", "700")
	require.NoError(t, err)
	assert.Contains(t, out, "Set chunk_size = 700")

	got, err := execute(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, got, "chunk_size:            700")
}

func TestSettingsSetCmd_RejectsUnknownKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "settings", "set", "warp_factor", "9")

	assert.Error(t, err)
}

func TestSettingsSetCmd_RejectsInvalidValue(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	// overlap >= chunk size fails cross-field validation
	_, err := execute(t, "settings", "set", "chunk_overlap", "5000")

	assert.Error(t, err)
}

func TestSettingsSetCmd_RequiresTwoArgs(t *testing.T) {
	_, err := execute(t, "settings", "set", "chunk_size")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}
