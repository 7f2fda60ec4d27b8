package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentpkg/internal/install"
)

var (
	uninstallDryRun bool
	uninstallKeep   bool
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <name>",
	Short: "Remove an installed package from the workspace",
	Long: `Remove every file an installed package owns, except files another package
now claims, and drop it from the workspace manifest.`,
	Args: cobra.ExactArgs(1),
	RunE: runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallDryRun, "dry-run", false, "Show what would be removed without deleting")
	uninstallCmd.Flags().BoolVar(&uninstallKeep, "keep-manifest", false, "Leave the workspace manifest unchanged")
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	e, err := loadEnv()
	if err != nil {
		return err
	}

	planner := install.New(e.catalog, e.ws)
	res, err := planner.Uninstall(cmd.Context(), install.UninstallRequest{Package: args[0], DryRun: uninstallDryRun})
	if errors.Is(err, install.ErrNotInstalled) {
		return fmt.Errorf("%s is not installed in %s", args[0], e.ws.Root)
	}
	if res != nil {
		for _, p := range res.Deleted {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		for _, p := range res.Kept {
			fmt.Fprintf(out, "  %s\n", styleMuted.Render("kept "+p+" (owned by another package)"))
		}
		for _, fe := range res.Failed {
			fmt.Fprintf(out, "  %s %v\n", styleError.Render("✗"), fe)
		}
	}
	if err != nil {
		return err
	}

	if uninstallDryRun {
		fmt.Fprintln(out, styleSuccess.Render(fmt.Sprintf("✓ Would remove %s@%s", res.Package, res.Version)))
		return nil
	}
	if !uninstallKeep {
		if _, err := e.ws.Forget(res.Package); err != nil {
			return fmt.Errorf("updating workspace manifest: %w", err)
		}
	}
	fmt.Fprintln(out, styleSuccess.Render(fmt.Sprintf("✓ Removed %s@%s", res.Package, res.Version)))
	return nil
}
