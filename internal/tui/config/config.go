package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all TUI configuration. It reads the same file as the CLI
// (~/.booktrack.yaml); unknown sections are ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
	User   UserConfig   `yaml:"user"`
	UI     UIConfig     `yaml:"ui"`
}

// ServerConfig contains server connection settings
type ServerConfig struct {
	URL string `yaml:"url"`
}

// UserConfig holds the bearer token
type UserConfig struct {
	Token string `yaml:"token"`
}

// UIConfig for UI preferences
type UIConfig struct {
	RefreshRate int    `yaml:"refresh_rate_ms"`
	Metric      string `yaml:"ranking_sort"`
	Scope       string `yaml:"ranking_scope"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:8080/api/v1",
		},
		UI: UIConfig{
			RefreshRate: 30000,
			Metric:      "time",
			Scope:       "month",
		},
	}
}

// Load loads configuration from file, falling back to defaults for anything
// the file leaves out
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = findConfigFile()
	}

	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.UI.RefreshRate <= 0 {
		cfg.UI.RefreshRate = Default().UI.RefreshRate
	}
	return cfg, nil
}

// RefreshInterval is how often the dashboard reloads
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.UI.RefreshRate) * time.Millisecond
}

// findConfigFile searches for config in standard locations
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		"./booktrack-tui.yaml",
		filepath.Join(home, ".config", "booktrack", "tui.yaml"),
		filepath.Join(home, ".booktrack.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}
