// Package config manages user-level settings stored at ~/.agentpkg/config.yaml.
// Every key can be overridden by an AGENTPKG_-prefixed environment variable,
// e.g. AGENTPKG_RESOLUTION_MODE.
package config
