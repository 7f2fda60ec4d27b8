package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/config"
	"github.com/agentx-labs/agentpkg/internal/index"
	"github.com/agentx-labs/agentpkg/internal/manifest"
	"github.com/agentx-labs/agentpkg/internal/platform"
	"github.com/agentx-labs/agentpkg/internal/registry"
	"github.com/agentx-labs/agentpkg/internal/remote"
	"github.com/agentx-labs/agentpkg/internal/resolve"
	"github.com/agentx-labs/agentpkg/internal/workspace"
)

// env bundles everything a command needs, built from the loaded settings.
type env struct {
	settings config.Settings
	catalog  *platform.Catalog
	ws       *workspace.Workspace
	registry *registry.Registry
	remote   *remote.Client
}

func loadEnv() (*env, error) {
	settings := config.Current()

	cat, err := platform.Load(settings.PlatformsFile)
	if err != nil {
		return nil, fmt.Errorf("loading platform catalog: %w", err)
	}

	dir := flagDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
	}
	ws, err := workspace.Find(dir)
	if err != nil {
		return nil, err
	}

	var opts []remote.Option
	if settings.RegistryToken != "" {
		opts = append(opts, remote.WithToken(settings.RegistryToken))
	}

	return &env{
		settings: settings,
		catalog:  cat,
		ws:       ws,
		registry: registry.New(settings.RegistryDir),
		remote:   remote.New(settings.RegistryURL, opts...),
	}, nil
}

// mode returns the resolution mode from flag, falling back to settings.
func (e *env) mode(flag string) (resolve.Mode, error) {
	if flag == "" {
		flag = e.settings.ResolutionMode
	}
	return resolve.ParseMode(flag)
}

// platforms picks the target platforms: the flag, then configured
// platforms, then the platforms detected in the workspace.
func (e *env) platforms(flag []string) ([]string, error) {
	ids := flag
	if len(ids) == 0 {
		ids = e.settings.Platforms
	}
	if len(ids) == 0 {
		ids = e.catalog.Detect(e.ws.Root)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no platforms detected in %s; pass --platforms or run '%s config set platforms <ids>'",
			e.ws.Root, branding.CLIName())
	}
	if err := e.catalog.Validate(ids); err != nil {
		return nil, err
	}
	e.catalog.SortIDs(ids)
	return ids, nil
}

// resolver builds the graph resolver. The remote client is left out when no
// registry URL is configured.
func (e *env) resolver() *resolve.Graph {
	var rem resolve.Remote
	if e.remote.Enabled() {
		rem = e.remote
	}
	return resolve.NewGraph(resolve.NewConstraintResolver(e.registry, rem))
}

// installed maps normalized package names to their installed version.
func (e *env) installed(ctx context.Context) (map[string]string, []*index.Record, error) {
	records, err := e.ws.Index().ReadAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string]string, len(records))
	for _, rec := range records {
		out[manifest.NormalizeName(rec.Package)] = rec.Workspace.Version
	}
	return out, records, nil
}

// installedManifests loads the registry manifests of installed packages so
// their dependency ranges keep constraining later installs. Packages named
// in skip and versions no longer in the registry are left out.
func (e *env) installedManifests(ctx context.Context, records []*index.Record, skip map[string]bool) ([]*manifest.Manifest, error) {
	out := make([]*manifest.Manifest, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, rec := range records {
		if skip[manifest.NormalizeName(rec.Package)] || rec.Workspace.Version == "" {
			continue
		}
		g.Go(func() error {
			m, err := e.registry.LoadManifest(gctx, rec.Package, rec.Workspace.Version)
			if errors.Is(err, registry.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading installed %s@%s: %w", rec.Package, rec.Workspace.Version, err)
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// splitRef splits name@range. A leading @ belongs to a scoped name.
func splitRef(ref string) (name, rng string) {
	i := strings.LastIndex(ref, "@")
	if i <= 0 {
		return ref, ""
	}
	return ref[:i], ref[i+1:]
}
