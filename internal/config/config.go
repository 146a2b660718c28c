package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir     = "data"
	DefaultDBFile      = "simulations.json"
	DefaultListLimit   = 50
	DefaultRecentLimit = 10
	DefaultTMin        = 0.0
	DefaultTMax        = 10.0
	DefaultY0          = 0.0
	DefaultYP0         = 1.0
)

type Config struct {
	DataDir     string         `yaml:"data_dir" mapstructure:"data_dir"`
	DBFile      string         `yaml:"db_file" mapstructure:"db_file"`
	ListLimit   int            `yaml:"list_limit" mapstructure:"list_limit"`
	RecentLimit int            `yaml:"recent_limit" mapstructure:"recent_limit"`
	Log         LogConfig      `yaml:"log" mapstructure:"log"`
	Defaults    DefaultsConfig `yaml:"defaults" mapstructure:"defaults"`
}

type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

type DefaultsConfig struct {
	EquationType string  `yaml:"equation_type" mapstructure:"equation_type"`
	Y0           float64 `yaml:"y0" mapstructure:"y0"`
	YP0          float64 `yaml:"yp0" mapstructure:"yp0"`
	TMin         float64 `yaml:"t_min" mapstructure:"t_min"`
	TMax         float64 `yaml:"t_max" mapstructure:"t_max"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:     DefaultDataDir,
		DBFile:      DefaultDBFile,
		ListLimit:   DefaultListLimit,
		RecentLimit: DefaultRecentLimit,
		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
		Defaults: DefaultsConfig{
			EquationType: "harmonic",
			Y0:           DefaultY0,
			YP0:          DefaultYP0,
			TMin:         DefaultTMin,
			TMax:         DefaultTMax,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DBFile == "" {
		errs = append(errs, errors.New("db_file must not be empty"))
	}
	if c.ListLimit < 0 {
		errs = append(errs, fmt.Errorf("list_limit must be >= 0, got %d", c.ListLimit))
	}
	if c.RecentLimit < 0 {
		errs = append(errs, fmt.Errorf("recent_limit must be >= 0, got %d", c.RecentLimit))
	}
	if c.Defaults.TMax <= c.Defaults.TMin {
		errs = append(errs, fmt.Errorf("defaults: t_max (%g) must exceed t_min (%g)", c.Defaults.TMax, c.Defaults.TMin))
	}
	return errors.Join(errs...)
}

// DBPath resolves the archive file. A relative data_dir is taken relative
// to root, the application directory.
func (c *Config) DBPath(root string) string {
	dir := c.DataDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return filepath.Join(dir, c.DBFile)
}

func (c *Config) InitialConditions() []float64 {
	return []float64{c.Defaults.Y0, c.Defaults.YP0}
}

func (c *Config) TimeRange() [2]float64 {
	return [2]float64{c.Defaults.TMin, c.Defaults.TMax}
}
