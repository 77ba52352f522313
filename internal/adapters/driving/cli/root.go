// Package cli implements the ragbase command-line interface. Commands
// are thin shells over the driving ports; all engine behaviour lives in
// internal/core/services.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ragbase/ragbase/internal/core/ports/driven"
	"github.com/ragbase/ragbase/internal/core/ports/driving"
	"github.com/ragbase/ragbase/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services injected by the composition root before Execute. Commands
// guard against nil so a partially wired binary fails with a clear
// message instead of a panic.
var (
	ingestor        driving.Ingestor
	querier         driving.Querier
	jobService      driving.JobService
	settingsService driving.SettingsService
	documentStore   driven.DocumentStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ragbase",
	Short: "Retrieval-augmented knowledge base engine",
	Long: `ragbase ingests documents into a chunked, embedded, indexed corpus
and answers queries with ranked, budget-bounded context payloads.

Typical flow:
  ragbase ingest ./docs/guide.md
  ragbase query "how do I rotate credentials?"`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Deps bundles everything the CLI needs from the composition root.
type Deps struct {
	Ingestor  driving.Ingestor
	Querier   driving.Querier
	Jobs      driving.JobService
	Settings  driving.SettingsService
	Documents driven.DocumentStore
	Version   string
}

// Wire injects the service implementations. Call once from main before
// Execute.
func Wire(deps Deps) {
	ingestor = deps.Ingestor
	querier = deps.Querier
	jobService = deps.Jobs
	settingsService = deps.Settings
	documentStore = deps.Documents
	if deps.Version != "" {
		version = deps.Version
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
