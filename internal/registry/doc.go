// Package registry is the local package inventory. Packages live under
// <root>/<name>/<version>/ with an agentpkg.yml manifest at the top of each
// version directory; every other file is package content addressed by its
// slash-separated path relative to that directory.
package registry
