package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentpkg/internal/platform"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List known platforms and where each universal directory lands",
	Long: `List the platform catalog. Detected platforms (their root directory or root
file exists in the workspace) are marked with *.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		detected := make(map[string]bool)
		for _, id := range e.catalog.Detect(e.ws.Root) {
			detected[id] = true
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tROOT\tSUBDIRS")
		for _, id := range e.catalog.IDs() {
			def, _ := e.catalog.Get(id)
			mark := " "
			if detected[id] {
				mark = "*"
			}
			var subdirs []string
			for _, s := range platform.UniversalSubdirs {
				if sd, ok := def.Subdirs[s]; ok {
					subdirs = append(subdirs, s+"="+sd.Path)
				}
			}
			fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", mark, id, def.Name, def.RootDir, strings.Join(subdirs, " "))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}
