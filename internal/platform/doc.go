// Package platform holds the catalog of AI coding tools agentpkg can install
// into, and translates between the platform-agnostic registry layout
// ("universal paths" such as rules/auth.md) and each tool's concrete
// workspace layout (.cursor/rules/auth.mdc, .claude/rules/auth.md, ...).
//
// The catalog is an immutable value built once by [Load] from the embedded
// platforms.jsonc, optionally overlaid with a user JSONC file. Callers pass
// the *Catalog explicitly; there is no package-level registry.
//
// Universal paths may carry a platform suffix restricting them to one tool,
// either on the file (rules/auth.cursor.md) or on a directory
// (skills/review.cursor/SKILL.md). Only ids present in the catalog are
// recognized as suffixes; anything else is kept as a literal name.
package platform
