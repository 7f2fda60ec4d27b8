// Package manifest reads, writes, and validates agentpkg package manifests
// (agentpkg.yml). A manifest names a package, its version, and the ranges of
// the packages it depends on; the workspace manifest uses the same format to
// declare what a workspace installs. Validation runs against the JSON Schema
// embedded from schema/manifest.schema.json.
package manifest
