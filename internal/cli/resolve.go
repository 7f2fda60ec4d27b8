package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentpkg/internal/manifest"
	"github.com/agentx-labs/agentpkg/internal/resolve"
)

var (
	resolveMode string
	resolveDev  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name[@range]>",
	Short: "Print the dependency tree of a package without installing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveMode, "mode", "", "Resolution mode: local-only, default or remote-primary")
	resolveCmd.Flags().BoolVar(&resolveDev, "dev", false, "Include the package's dev-packages")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	mode, err := e.mode(resolveMode)
	if err != nil {
		return err
	}
	installed, _, err := e.installed(ctx)
	if err != nil {
		return err
	}

	name, rng := splitRef(args[0])
	res, err := e.resolver().Resolve(ctx, []resolve.Root{{Name: name, Range: rng, IncludeDev: resolveDev}}, resolve.Options{
		Mode:      mode,
		Installed: installed,
	})
	if err != nil {
		return err
	}
	if ferr, ok := res.Failures[manifest.NormalizeName(name)]; ok {
		return ferr
	}

	children := make(map[string][]*resolve.Node)
	for _, n := range res.Packages {
		if !n.IsRoot {
			children[n.Parent] = append(children[n.Parent], n)
		}
	}
	for _, n := range res.Packages {
		if n.IsRoot {
			printNode(out, n, children, "", true, true)
		}
	}
	for _, missing := range res.Missing {
		fmt.Fprintf(out, "  %s %s\n", styleError.Render("✗"), missing)
	}
	printWarnings(out, res.Warnings)
	return nil
}

// printNode prints the tree below n with box-drawing characters.
func printNode(w io.Writer, n *resolve.Node, children map[string][]*resolve.Node, prefix string, isLast, root bool) {
	label := fmt.Sprintf("%s@%s", n.Name, n.Version)
	if n.Source == resolve.SourceRemote {
		label += " (remote)"
	}
	if n.Resolution == resolve.ResolutionKept {
		label += " (installed)"
	} else if n.Resolution != resolve.ResolutionNone {
		label += " (" + string(n.Resolution) + ")"
	}

	connector := "├── "
	if isLast {
		connector = "└── "
	}
	childPrefix := prefix
	if root {
		fmt.Fprintf(w, "  %s\n", label)
	} else {
		fmt.Fprintf(w, "  %s%s%s\n", prefix, connector, label)
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}

	kids := children[manifest.NormalizeName(n.Name)]
	for i, c := range kids {
		printNode(w, c, children, childPrefix, i == len(kids)-1, false)
	}
}
