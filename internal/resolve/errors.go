package resolve

import (
	"fmt"
	"strings"
)

// NotFoundError reports a package with no versions anywhere.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("package %s not found", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// VersionConflictError reports that versions exist but none satisfies every
// asserted range.
type VersionConflictError struct {
	Name      string
	Ranges    []string
	Available []string
}

func (e *VersionConflictError) Error() string {
	avail := "none"
	if len(e.Available) > 0 {
		avail = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("no version of %s satisfies %s (available: %s)",
		e.Name, strings.Join(e.Ranges, " & "), avail)
}
