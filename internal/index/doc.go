// Package index persists per-package ownership records for a workspace.
//
// Each installed package has one record at
// <workspace>/.agentpkg/packages/<name>/index.yml mapping keys to the
// workspace paths the package wrote. A key is either a file key (a single
// registry file) or a directory key, persisted with a trailing slash, which
// claims everything currently below the listed directories.
package index
