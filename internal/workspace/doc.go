// Package workspace locates a workspace and its .agentpkg metadata
// directory, derives the stamp written into index records, and maintains
// the workspace manifest that lists the packages a workspace depends on.
package workspace
