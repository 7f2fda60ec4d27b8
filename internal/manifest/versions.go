package manifest

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckVersions reports what the schema cannot express: a package version
// that is not strict semver, and dependency ranges that do not parse.
// Ranges may be joined with "&"; "*" and empty mean any version.
func CheckVersions(m *Manifest) []ValidationIssue {
	var issues []ValidationIssue
	if m.Version != "" {
		if _, err := semver.StrictNewVersion(m.Version); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    "/version",
				Message: fmt.Sprintf("%q is not a semantic version", m.Version),
				Keyword: "semver",
			})
		}
	}
	issues = appendRangeIssues(issues, "packages", m.Packages)
	issues = appendRangeIssues(issues, "dev-packages", m.DevPackages)
	return issues
}

func appendRangeIssues(issues []ValidationIssue, list string, deps []Dependency) []ValidationIssue {
	for i, d := range deps {
		r := strings.TrimSpace(d.Version)
		if r == "" || r == "*" {
			continue
		}
		for _, part := range strings.Split(r, "&") {
			if _, err := semver.NewConstraint(strings.TrimSpace(part)); err != nil {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("/%s/%d/version", list, i),
					Message: fmt.Sprintf("invalid range %q: %v", strings.TrimSpace(part), err),
					Keyword: "semver",
				})
			}
		}
	}
	return issues
}
