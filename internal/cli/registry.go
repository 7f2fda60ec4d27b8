package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	registryCmd.AddCommand(registryAddCmd)
	registryCmd.AddCommand(registryListCmd)
	rootCmd.AddCommand(registryCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the local package registry",
}

var registryAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Copy a package directory into the local registry",
	Long: `Validate the manifest in <dir> and copy the package into the local registry
under <name>/<version>. An existing copy of the same version is replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		m, err := e.registry.Add(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render(fmt.Sprintf("✓ Added %s@%s", m.Name, m.EffectiveVersion())))
		return nil
	},
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List packages in the local registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv()
		if err != nil {
			return err
		}
		names, err := e.registry.Names(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No packages in %s.\n", e.registry.Root)
			return nil
		}
		if err := e.registry.Prefetch(ctx, names); err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tVERSIONS")
		for _, name := range names {
			versions, err := e.registry.ListVersions(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(versions, ", "))
		}
		return tw.Flush()
	},
}
