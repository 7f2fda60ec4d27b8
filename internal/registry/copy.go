package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/agentx-labs/agentpkg/internal/branding"
	"github.com/agentx-labs/agentpkg/internal/manifest"
)

// excludedNames are files/directories never treated as package content.
var excludedNames = map[string]bool{
	"node_modules": true,
	".git":         true,
	".DS_Store":    true,
}

// shouldExclude returns true if the name should be excluded from a package.
func shouldExclude(name string) bool {
	return excludedNames[name]
}

// readFiles returns every regular file below dir, sorted by path.
// Symlinks and excluded names are skipped.
func readFiles(dir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if shouldExclude(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Content: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Add copies the package directory src into the registry under the name and
// version declared by its manifest, replacing any existing copy of that
// version. It returns the stored manifest.
func (r *Registry) Add(ctx context.Context, src string) (*manifest.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mfPath := filepath.Join(src, branding.ManifestFile())
	result, err := manifest.ValidateFile(mfPath)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("%s: invalid manifest: %s", mfPath, describeIssues(result.Issues))
	}
	m, err := manifest.ParseFile(mfPath)
	if err != nil {
		return nil, err
	}
	if issues := manifest.CheckVersions(m); len(issues) > 0 {
		return nil, fmt.Errorf("%s: %s", mfPath, describeIssues(issues))
	}

	dst := r.versionDir(m.Name, m.EffectiveVersion())
	if _, err := os.Stat(dst); err == nil {
		if err := os.RemoveAll(dst); err != nil {
			return nil, fmt.Errorf("removing existing copy at %s: %w", dst, err)
		}
	}
	if err := copyDir(src, dst); err != nil {
		return nil, fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	r.Invalidate(m.Name)
	r.log.Info().Str("package", m.Name).Str("version", m.EffectiveVersion()).Msg("added to registry")
	return m, nil
}

// copyDir recursively copies src to dst, excluding entries in excludedNames.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if shouldExclude(entry.Name()) {
			continue
		}

		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else if entry.Type().IsRegular() {
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}

	return nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, srcInfo.Mode())
}
