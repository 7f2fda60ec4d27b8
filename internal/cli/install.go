package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentpkg/internal/install"
	"github.com/agentx-labs/agentpkg/internal/manifest"
	"github.com/agentx-labs/agentpkg/internal/registry"
	"github.com/agentx-labs/agentpkg/internal/resolve"
	"github.com/agentx-labs/agentpkg/internal/workspace"
)

var (
	installPlatforms []string
	installDev       bool
	installForce     bool
	installDryRun    bool
	installMode      string
	installConflicts string
	installYes       bool
)

var installCmd = &cobra.Command{
	Use:   "install [name[@range]]",
	Short: "Install a package and its dependencies into the workspace",
	Long: `Install a package and its dependencies into the workspace.

With a name, the package is resolved as a root, installed, and recorded in the
workspace manifest. Without a name, every package the workspace manifest
declares is installed.

Files are translated for each target platform. Files already owned by another
package, or present but unmanaged, are conflicts: you are asked what to do
unless --conflicts, --force or --yes decides for you.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringSliceVarP(&installPlatforms, "platforms", "p", nil, "Target platforms (default: configured, then detected)")
	installCmd.Flags().BoolVar(&installDev, "dev", false, "Record the package under dev-packages")
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "Keep both on file conflicts and accept higher versions on re-visits")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "Show what would change without writing")
	installCmd.Flags().StringVar(&installMode, "mode", "", "Resolution mode: local-only, default or remote-primary")
	installCmd.Flags().StringVar(&installConflicts, "conflicts", "", "Resolve every file conflict as keep-both, skip or overwrite")
	installCmd.Flags().BoolVarP(&installYes, "yes", "y", false, "Never prompt; unresolved conflicts are skipped")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	e, err := loadEnv()
	if err != nil {
		return err
	}
	mode, err := e.mode(installMode)
	if err != nil {
		return err
	}
	if installConflicts == "" {
		installConflicts = e.settings.ConflictStrategy
	}
	strategy, err := install.ParseResolution(installConflicts)
	if err != nil {
		return err
	}
	platforms, err := e.platforms(installPlatforms)
	if err != nil {
		return err
	}

	m, err := e.ws.LoadManifest()
	if err != nil && !errors.Is(err, workspace.ErrNoManifest) {
		return err
	}

	var (
		roots     []resolve.Root
		named     string
		namedRng  string
		rootRange = make(map[string]string)
	)
	if m != nil {
		for key, rng := range m.Ranges() {
			if rng != "" {
				rootRange[key] = rng
			}
		}
	}
	switch {
	case len(args) == 1:
		named, namedRng = splitRef(args[0])
		roots = []resolve.Root{{Name: named, Range: namedRng, IncludeDev: true}}
	case m == nil:
		return fmt.Errorf("no workspace manifest in %s; name a package or run 'init' first", e.ws.Root)
	default:
		for _, d := range m.Dependencies(true) {
			roots = append(roots, resolve.Root{Name: d.Name, Range: d.Version})
		}
	}
	if len(roots) == 0 {
		fmt.Fprintln(out, "Nothing to install.")
		return nil
	}

	installed, records, err := e.installed(ctx)
	if err != nil {
		return err
	}
	rootNames := make(map[string]bool, len(roots))
	for _, r := range roots {
		rootNames[manifest.NormalizeName(r.Name)] = true
	}
	manifests, err := e.installedManifests(ctx, records, rootNames)
	if err != nil {
		return err
	}

	nonInteractive := installYes || !interactive()
	var (
		confirm resolve.OverwriteConfirmer
		decider install.Decider
	)
	if !nonInteractive {
		t := newTerminal(cmd.InOrStdin(), out)
		confirm, decider = t, t
	}

	res, err := e.resolver().Resolve(ctx, roots, resolve.Options{
		Mode:       mode,
		RootRanges: rootRange,
		Global:     resolve.GatherConstraints(append(manifests, m)...),
		Installed:  installed,
		Force:      installForce,
		Confirm:    confirm,
	})
	if err != nil {
		return err
	}
	printWarnings(out, res.Warnings)
	if named != "" {
		if ferr, ok := res.Failures[manifest.NormalizeName(named)]; ok {
			return ferr
		}
	}

	planner := install.New(e.catalog, e.ws)
	var count int
	for _, node := range res.Packages {
		pkg, err := e.registry.LoadPackage(ctx, node.Name, node.Version)
		if errors.Is(err, registry.ErrNotFound) && node.Source == resolve.SourceRemote {
			printWarnings(out, []string{fmt.Sprintf("%s@%s is only available from the remote registry; add it to the local registry to install it", node.Name, node.Version)})
			continue
		}
		if err != nil {
			return err
		}

		r, err := planner.Plan(ctx, install.Request{
			Package:         pkg,
			Platforms:       platforms,
			DryRun:          installDryRun,
			Force:           installForce,
			NonInteractive:  nonInteractive,
			DefaultStrategy: strategy,
			Decider:         decider,
		})
		if errors.Is(err, install.ErrCancelled) {
			fmt.Fprintln(out, "Installation cancelled.")
			return fmt.Errorf("%w: %s", install.ErrCancelled, node.Name)
		}
		if err != nil {
			return fmt.Errorf("installing %s@%s: %w", node.Name, node.Version, err)
		}
		printInstall(out, r)
		count++
	}

	if named != "" && !installDryRun {
		if node, ok := res.Get(named); ok {
			rng := namedRng
			if rng == "" && node.Version != manifest.Unversioned {
				rng = "^" + node.Version
			}
			if err := e.ws.Record(node.Name, rng, installDev); err != nil {
				return fmt.Errorf("updating workspace manifest: %w", err)
			}
		}
	}

	fmt.Fprintln(out)
	verb := "Installed"
	if installDryRun {
		verb = "Would install"
	}
	fmt.Fprintln(out, styleSuccess.Render(fmt.Sprintf("✓ %s %d package(s) for %s.", verb, count, strings.Join(platforms, ", "))))
	return nil
}

func printInstall(w io.Writer, r *install.Result) {
	fmt.Fprintln(w, styleHeader.Render(fmt.Sprintf("%s@%s", r.Package, r.Version)))
	for _, p := range r.Created {
		fmt.Fprintf(w, "  + %s\n", p)
	}
	for _, p := range r.Updated {
		fmt.Fprintf(w, "  ~ %s\n", p)
	}
	for _, p := range r.Deleted {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	for _, d := range r.Decisions {
		if d.RenamedTo != "" {
			fmt.Fprintf(w, "  %s\n", styleMuted.Render(fmt.Sprintf("kept existing %s as %s", d.Path, d.RenamedTo)))
		}
	}
	if len(r.Unchanged) > 0 {
		fmt.Fprintf(w, "  %s\n", styleMuted.Render(fmt.Sprintf("%d file(s) unchanged", len(r.Unchanged))))
	}
	for _, fe := range r.Failed {
		fmt.Fprintf(w, "  %s %v\n", styleError.Render("✗"), fe)
	}
	printWarnings(w, r.Warnings)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "  %s %s\n", styleWarning.Render("⚠"), msg)
	}
}
