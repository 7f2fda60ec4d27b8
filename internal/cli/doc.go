// Package cli defines the Cobra command tree for the agentpkg CLI. Each file
// in this package registers one top-level command (install, resolve, status,
// etc.) with the root command. Commands only parse flags, wire the internal
// packages together, prompt the user and format output.
package cli
