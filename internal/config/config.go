package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the settings shared by every command.
type Config struct {
	ContainerPath string `mapstructure:"container_path"`
	GroupDir      string `mapstructure:"group_dir"`
	SysfsMount    string `mapstructure:"sysfs_mount"`
	PrimaryRegion uint32 `mapstructure:"primary_region"`
	DumpBytes     int    `mapstructure:"dump_bytes"`
	Preflight     bool   `mapstructure:"preflight"`
	Output        string `mapstructure:"output"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("container_path", "/dev/vfio/vfio")
	v.SetDefault("group_dir", "/dev/vfio")
	v.SetDefault("sysfs_mount", "/sys")
	v.SetDefault("primary_region", 0) // BAR0
	v.SetDefault("dump_bytes", 16)
	v.SetDefault("preflight", true)
	v.SetDefault("output", "table")
}

// Load reads configuration with the global viper instance.
func Load(configFile string) (*Config, error) {
	return LoadFrom(viper.GetViper(), configFile)
}

// LoadFrom reads configuration into v from configFile, or from
// vfio-probe.yaml in the usual search paths when configFile is empty, then
// from VFIO_PROBE_* environment variables. A missing config file is not an
// error.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("vfio-probe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.vfio-probe")
		v.AddConfigPath("/etc/vfio-probe")
	}

	SetDefaults(v)

	v.SetEnvPrefix("VFIO_PROBE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the probe cannot run with.
func (c *Config) Validate() error {
	if c.ContainerPath == "" {
		return fmt.Errorf("container_path must not be empty")
	}
	if c.GroupDir == "" {
		return fmt.Errorf("group_dir must not be empty")
	}
	if c.DumpBytes < 0 {
		return fmt.Errorf("dump_bytes must not be negative, got %d", c.DumpBytes)
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", c.Output)
	}
	return nil
}
