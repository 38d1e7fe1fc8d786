// Package config manages vulnhist configuration
// Supports YAML config files, environment variables, and per-project settings
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the complete vulnhist configuration
type Config struct {
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Timeline TimelineConfig `yaml:"timeline" mapstructure:"timeline"`
	Neutral  NeutralConfig  `yaml:"neutral" mapstructure:"neutral"`
	Projects []Project      `yaml:"projects" mapstructure:"projects"`
}

// OutputConfig controls where result tables are written
type OutputConfig struct {
	Directory         string `yaml:"directory" mapstructure:"directory"`
	CSVWriteFrequency int    `yaml:"csv_write_frequency" mapstructure:"csv_write_frequency"`
}

// LoggingConfig controls log destination and verbosity
type LoggingConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
	Level     string `yaml:"level" mapstructure:"level"`
}

// SearchConfig controls commit message searches
type SearchConfig struct {
	AllBranches bool `yaml:"all_branches" mapstructure:"all_branches"`
}

// TimelineConfig controls timeline construction
type TimelineConfig struct {
	// StartAtIndex skips checkpoint pairs below the given topological
	// index. Negative means start from the beginning.
	StartAtIndex int `yaml:"start_at_index" mapstructure:"start_at_index"`
}

// NeutralConfig bounds the author date window for neutral commit exports
type NeutralConfig struct {
	After  string `yaml:"after" mapstructure:"after"`
	Before string `yaml:"before" mapstructure:"before"`
}

// Project describes one repository under study
type Project struct {
	Name           string `yaml:"name" mapstructure:"name"`
	ShortName      string `yaml:"short_name" mapstructure:"short_name"`
	DatabaseID     int    `yaml:"database_id" mapstructure:"database_id"`
	RepositoryPath string `yaml:"repository_path" mapstructure:"repository_path"`
	MasterBranch   string `yaml:"master_branch" mapstructure:"master_branch"`
	Language       string `yaml:"language" mapstructure:"language"`
	Vendor         string `yaml:"vendor" mapstructure:"vendor"`
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Directory:         "./output",
			CSVWriteFrequency: 10,
		},
		Logging: LoggingConfig{
			Directory: "./logs",
			Level:     "info",
		},
		Search: SearchConfig{
			AllBranches: false,
		},
		Timeline: TimelineConfig{
			StartAtIndex: -1,
		},
		Neutral:  NeutralConfig{},
		Projects: nil,
	}
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	// Load .env files first (before viper reads env vars)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	defaults := Default()
	v.SetDefault("output.directory", defaults.Output.Directory)
	v.SetDefault("output.csv_write_frequency", defaults.Output.CSVWriteFrequency)
	v.SetDefault("logging.directory", defaults.Logging.Directory)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("search.all_branches", defaults.Search.AllBranches)
	v.SetDefault("timeline.start_at_index", defaults.Timeline.StartAtIndex)

	// Environment variables override config file
	v.SetEnvPrefix("VULNHIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file location
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".vulnhist")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".vulnhist"))
		}
	}

	// Read config file (optional if not explicitly specified)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Logging.Directory = expandPath(cfg.Logging.Directory)
	for i := range cfg.Projects {
		cfg.Projects[i].RepositoryPath = expandPath(cfg.Projects[i].RepositoryPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads .env files in precedence order
func loadEnvFiles() {
	candidates := []string{
		".env.local",
		".env",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".vulnhist", ".env"))
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// applyEnvOverrides applies well-known environment variables
func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv("VULNHIST_OUTPUT_DIRECTORY"); dir != "" {
		cfg.Output.Directory = dir
	}
	if dir := os.Getenv("VULNHIST_LOGGING_DIRECTORY"); dir != "" {
		cfg.Logging.Directory = dir
	}
	if level := os.Getenv("VULNHIST_LOGGING_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	var problems []string
	if c.Output.CSVWriteFrequency < 1 {
		problems = append(problems, "output.csv_write_frequency must be at least 1")
	}
	seen := make(map[string]bool)
	for _, p := range c.Projects {
		if p.ShortName == "" {
			problems = append(problems, fmt.Sprintf("project %q has no short_name", p.Name))
			continue
		}
		if seen[p.ShortName] {
			problems = append(problems, fmt.Sprintf("duplicate project short_name %q", p.ShortName))
		}
		seen[p.ShortName] = true
		if !p.Enabled {
			continue
		}
		if p.RepositoryPath == "" {
			problems = append(problems, fmt.Sprintf("project %q has no repository_path", p.ShortName))
		}
		switch p.Language {
		case "c", "c++":
		default:
			problems = append(problems, fmt.Sprintf("project %q has unsupported language %q", p.ShortName, p.Language))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// EnabledProjects returns the enabled projects in config order
func (c *Config) EnabledProjects() []Project {
	var enabled []Project
	for _, p := range c.Projects {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}

// FindProject looks up a project by short name
func (c *Config) FindProject(shortName string) (Project, bool) {
	for _, p := range c.Projects {
		if p.ShortName == shortName {
			return p, true
		}
	}
	return Project{}, false
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
