// Package config handles repository and global configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents repository configuration stored in .sokman/config.json.
type Config struct {
	DumpPath   string `json:"dump_path,omitempty"` // Absolute path to the DBLP XML dump
	SourceName string `json:"source_name"`         // Source label assigned to imports
}

const (
	SokmanDir         = ".sokman"
	ConfigFile        = "config.json"
	DBFile            = "sok.db"
	SearchChoicesFile = "search-choices.json"
	SnowballFile      = "snowball-choices.json"

	// DefaultSourceName is the source imports are attributed to when the
	// repository config does not override it.
	DefaultSourceName = "DBLP"
)

// SokmanPath returns the path to the .sokman directory from a root path.
func SokmanPath(root string) string {
	return filepath.Join(root, SokmanDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, SokmanDir, ConfigFile)
}

// DBPath returns the path to the SQLite database from a root path.
func DBPath(root string) string {
	return filepath.Join(root, SokmanDir, DBFile)
}

// SearchChoicesPath returns the path to the search decision cache from a
// root path.
func SearchChoicesPath(root string) string {
	return filepath.Join(root, SokmanDir, SearchChoicesFile)
}

// SnowballChoicesPath returns the path to the snowball decision cache from
// a root path.
func SnowballChoicesPath(root string) string {
	return filepath.Join(root, SokmanDir, SnowballFile)
}

// IsRepository checks if the given path contains a sokman repository.
func IsRepository(root string) bool {
	info, err := os.Stat(SokmanPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a sokman repository.
// Returns the repository root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a sokman repository (no .sokman directory found)")
		}
		abs = parent
	}
}

// Load reads configuration from the repository at the given root. A missing
// config file yields the defaults.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{SourceName: DefaultSourceName}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.SourceName == "" {
		cfg.SourceName = DefaultSourceName
	}
	if cfg.DumpPath != "" {
		cfg.DumpPath = ExpandTilde(cfg.DumpPath)
	}

	return &cfg, nil
}

// Save writes configuration to the repository at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ExpandTilde expands ~ to the user's home directory. Returns the original
// path unchanged if it doesn't start with ~.
func ExpandTilde(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
