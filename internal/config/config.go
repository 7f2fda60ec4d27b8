package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/agentx-labs/agentpkg/internal/branding"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys.
const (
	KeyResolutionMode   = "resolution_mode"
	KeyConflictStrategy = "conflict_strategy"
	KeyPlatforms        = "platforms"
	KeyRegistryDir      = "registry_dir"
	KeyRegistryURL      = "registry_url"
	KeyRegistryToken    = "registry_token"
	KeyPlatformsFile    = "platforms_file"
)

// validValues restricts keys with a closed set of values.
var validValues = map[string][]string{
	KeyResolutionMode:   {"local-only", "default", "remote-primary"},
	KeyConflictStrategy: {"", "keep-both", "skip", "overwrite"},
}

// Keys returns every known setting key, sorted.
func Keys() []string {
	keys := []string{
		KeyResolutionMode, KeyConflictStrategy, KeyPlatforms, KeyRegistryDir,
		KeyRegistryURL, KeyRegistryToken, KeyPlatformsFile,
	}
	sort.Strings(keys)
	return keys
}

// Settings is a typed snapshot of the loaded configuration.
type Settings struct {
	ResolutionMode   string
	ConflictStrategy string
	Platforms        []string
	RegistryDir      string
	RegistryURL      string
	RegistryToken    string
	PlatformsFile    string
}

// Dir returns the config directory. AGENTPKG_HOME overrides ~/.agentpkg.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file.
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// DefaultRegistryDir returns $XDG_DATA_HOME/agentpkg/registry.
func DefaultRegistryDir() string {
	return filepath.Join(xdg.DataHome, branding.CLIName(), "registry")
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
// It may be called again to pick up changes.
func Load() {
	viper.Reset()
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeyResolutionMode, "default")
	viper.SetDefault(KeyConflictStrategy, "")
	viper.SetDefault(KeyRegistryDir, DefaultRegistryDir())
	viper.SetDefault(KeyRegistryURL, "")
	viper.SetDefault(KeyRegistryToken, "")
	viper.SetDefault(KeyPlatformsFile, filepath.Join(Dir(), "platforms.jsonc"))

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Current returns the loaded settings.
func Current() Settings {
	return Settings{
		ResolutionMode:   viper.GetString(KeyResolutionMode),
		ConflictStrategy: viper.GetString(KeyConflictStrategy),
		Platforms:        platforms(),
		RegistryDir:      viper.GetString(KeyRegistryDir),
		RegistryURL:      viper.GetString(KeyRegistryURL),
		RegistryToken:    viper.GetString(KeyRegistryToken),
		PlatformsFile:    viper.GetString(KeyPlatformsFile),
	}
}

// platforms accepts a YAML list or a comma separated string (env form).
func platforms() []string {
	switch v := viper.Get(KeyPlatforms).(type) {
	case nil:
		return nil
	case string:
		return splitList(v)
	default:
		var out []string
		for _, s := range viper.GetStringSlice(KeyPlatforms) {
			out = append(out, splitList(s)...)
		}
		return out
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Get returns a config value by key. Lists are joined with commas.
// Returns empty string if not set.
func Get(key string) string {
	if key == KeyPlatforms {
		return strings.Join(platforms(), ",")
	}
	return viper.GetString(key)
}

// Set validates and writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if !known(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	if allowed, ok := validValues[key]; ok && !contains(allowed, value) {
		var names []string
		for _, a := range allowed {
			if a != "" {
				names = append(names, a)
			}
		}
		return fmt.Errorf("invalid value %q for %s (want one of: %s)", value, key, strings.Join(names, ", "))
	}
	if err := EnsureDir(); err != nil {
		return err
	}

	var stored interface{} = value
	if key == KeyPlatforms {
		stored = splitList(value)
	}
	viper.Set(key, stored)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	// Persist only what the file already holds plus this key, not defaults.
	file := viper.New()
	file.SetConfigFile(configFile)
	file.SetConfigType(fileType)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	file.Set(key, stored)
	if err := file.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

func known(key string) bool {
	return contains(Keys(), key)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
