package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/config"
	"github.com/agentx-labs/agentpkg/internal/logging"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagVerbose int
	flagDir     string
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` installs versioned packages of AI assistant configuration (rules,
commands, agents, skills) into a workspace, translating each file to the
layout every selected assistant platform expects and tracking which package
owns which file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(flagVerbose, cmd.ErrOrStderr())
		config.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().StringVarP(&flagDir, "dir", "C", "", "Workspace directory (default: nearest directory with a workspace manifest)")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", styleError.Render("Error:"), err)
		return err
	}
	return nil
}
