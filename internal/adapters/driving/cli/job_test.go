package cli

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobCmd_HasSubcommands(t *testing.T) {
	commands := jobCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "list")
	assert.Contains(t, commandNames, "get")
	assert.Contains(t, commandNames, "cancel")
}

func TestJobListCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "job", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No jobs found.")
}

func TestJobListCmd_ShowsCompletedJob(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeTestFile(t, "note.txt", "a document to make a job for")
	_, err := execute(t, "ingest", "--mime", "text/plain", path)
	require.NoError(t, err)

	out, err := execute(t, "job", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "1/1")
}

func TestJobGetCmd_ShowsDetails(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeTestFile(t, "note.txt", "another document for a job")
	out, err := execute(t, "ingest", "--no-wait", "--mime", "text/plain", path)
	require.NoError(t, err)
	defer func() { ingestNoWait = false }()

	var jobID string
	_, err = fmt.Sscanf(out, "Job submitted: %s", &jobID)
	require.NoError(t, err)

	got, err := execute(t, "job", "get", jobID)

	require.NoError(t, err)
	assert.Contains(t, got, "Job: "+jobID)
	assert.Contains(t, got, "Kind:")
}

func TestJobGetCmd_UnknownJob(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "job", "get", "no-such-job")

	assert.Error(t, err)
}

func TestJobCancelCmd_TerminalJob(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	path := writeTestFile(t, "note.txt", "job that will finish before cancel")
	_, err := execute(t, "ingest", "--mime", "text/plain", path)
	require.NoError(t, err)

	out, err := execute(t, "job", "list")
	require.NoError(t, err)
	jobID := strings.Fields(out)[0]

	_, err = execute(t, "job", "cancel", jobID)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cancel")
}
