package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentpkg/internal/workspace"
)

var initName string

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Workspace name (default: directory name)")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a workspace manifest in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := flagDir
		if dir == "" {
			var err error
			if dir, err = os.Getwd(); err != nil {
				return fmt.Errorf("resolving working directory: %w", err)
			}
		}
		ws, err := workspace.Open(dir)
		if err != nil {
			return err
		}
		m, created, err := ws.Init(initName)
		if err != nil {
			return err
		}
		rel, _ := ws.Rel(ws.ManifestPath())
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already exists (workspace %q).\n", rel, m.Name)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render(fmt.Sprintf("✓ Created %s for workspace %q", rel, m.Name)))
		return nil
	},
}
