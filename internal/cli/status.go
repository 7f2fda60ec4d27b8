package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentx-labs/agentpkg/internal/manifest"
	"github.com/agentx-labs/agentpkg/internal/workspace"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"list", "ls"},
	Short:   "List installed packages and the files they own",
	RunE:    runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statusCmd)
}

// statusEntry is one package for display.
type statusEntry struct {
	Name     string              `json:"name"`
	Version  string              `json:"version,omitempty"`
	Declared string              `json:"declared,omitempty"`
	Dev      bool                `json:"dev,omitempty"`
	Files    map[string][]string `json:"files,omitempty"`
	Status   string              `json:"status"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	e, err := loadEnv()
	if err != nil {
		return err
	}
	_, records, err := e.installed(cmd.Context())
	if err != nil {
		return err
	}
	m, err := e.ws.LoadManifest()
	if err != nil && !errors.Is(err, workspace.ErrNoManifest) {
		return err
	}

	var entries []statusEntry
	seen := make(map[string]bool)
	for _, rec := range records {
		entry := statusEntry{Name: rec.Package, Version: rec.Workspace.Version, Status: "installed", Files: make(map[string][]string)}
		for _, k := range rec.Keys() {
			entry.Files[k.String()] = rec.Files[k]
		}
		if m != nil {
			if d, dev, ok := m.Find(rec.Package); ok {
				entry.Declared, entry.Dev = d.Version, dev
			} else {
				entry.Status = "transitive"
			}
		}
		if rec.Workspace.Hash != "" && rec.Workspace.Hash != e.ws.Hash() {
			entry.Status = "moved"
		}
		seen[manifest.NormalizeName(rec.Package)] = true
		entries = append(entries, entry)
	}
	if m != nil {
		for _, d := range m.Dependencies(true) {
			if seen[manifest.NormalizeName(d.Name)] {
				continue
			}
			_, dev, _ := m.Find(d.Name)
			entries = append(entries, statusEntry{Name: d.Name, Declared: d.Version, Dev: dev, Status: "missing"})
		}
	}

	if statusJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling status: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No packages installed yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tDECLARED\tFILES\tSTATUS")
	for _, entry := range entries {
		files := 0
		for _, list := range entry.Files {
			files += len(list)
		}
		declared := entry.Declared
		if entry.Dev {
			declared += " (dev)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", entry.Name, dash(entry.Version), dash(declared), files, entry.Status)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
