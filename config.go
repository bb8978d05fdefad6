package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the YAML configuration for a walk run. The walk treats
// it as read-only input.
type AppConfig struct {
	Version string        `yaml:"version"`
	General GeneralConfig `yaml:"general"`
	Auth    AuthConfig    `yaml:"auth"`
	Tenancy TenancyConfig `yaml:"tenancy"`
	Walk    WalkConfig    `yaml:"walk"`
	Filters FilterConfig  `yaml:"filters"`
	Output  OutputConfig  `yaml:"output"`
}

// GeneralConfig holds general execution settings.
type GeneralConfig struct {
	Timeout      int    `yaml:"timeout"`       // whole-run ceiling in seconds
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error
	OutputFormat string `yaml:"output_format"` // json, csv, tsv
	Progress     bool   `yaml:"progress"`      // stderr progress line
}

// AuthConfig selects how the OCI clients authenticate.
type AuthConfig struct {
	Method     string `yaml:"method"`      // config_file or instance_principal
	Profile    string `yaml:"profile"`     // config_file profile name
	ConfigFile string `yaml:"config_file"` // empty = ~/.oci/config
}

// TenancyConfig optionally pins the tenancy root; empty means the root
// OCID is taken from the authentication provider.
type TenancyConfig struct {
	ID string `yaml:"id"`
}

// WalkConfig holds concurrency and retry parameters for the walk.
type WalkConfig struct {
	MaxCompartmentWorkers      int  `yaml:"max_compartment_workers"`
	MaxDetailWorkers           int  `yaml:"max_detail_workers"`
	MaxRetries                 int  `yaml:"max_retries"`
	RetryBaseDelayMs           int  `yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs            int  `yaml:"retry_max_delay_ms"`
	IncludeDeletedCompartments bool `yaml:"include_deleted_compartments"`
}

// OutputConfig holds output-related settings.
type OutputConfig struct {
	File string `yaml:"file"` // empty = stdout
}

const (
	authMethodConfigFile        = "config_file"
	authMethodInstancePrincipal = "instance_principal"
)

func getDefaultConfig() *AppConfig {
	return &AppConfig{
		Version: "1.0",
		General: GeneralConfig{
			Timeout:      300,
			LogLevel:     "info",
			OutputFormat: "json",
			Progress:     false,
		},
		Auth: AuthConfig{
			Method:  authMethodConfigFile,
			Profile: "DEFAULT",
		},
		Walk: WalkConfig{
			MaxCompartmentWorkers:      5,
			MaxDetailWorkers:           8,
			MaxRetries:                 3,
			RetryBaseDelayMs:           500,
			RetryMaxDelayMs:            30000,
			IncludeDeletedCompartments: true,
		},
		Filters: FilterConfig{
			IncludeCompartments: []string{},
			ExcludeCompartments: []string{},
		},
		Output: OutputConfig{
			File: "",
		},
	}
}

// Configuration file search paths in priority order.
func getConfigPaths() []string {
	paths := []string{}

	if configFile := os.Getenv("OCI_CHECKMK_CONFIG_FILE"); configFile != "" {
		paths = append(paths, configFile)
	}

	paths = append(paths, "./oci-checkmk.yaml")

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".oci-checkmk.yaml"))
	}

	paths = append(paths, "/etc/oci-checkmk.yaml")

	return paths
}

// LoadConfig loads configuration from the first YAML file found on the
// search path, falling back to defaults when none exists.
func LoadConfig() (*AppConfig, error) {
	config := getDefaultConfig()

	for _, path := range getConfigPaths() {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
			}
			break
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func validateConfig(config *AppConfig) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !stringInSlice(config.General.LogLevel, validLogLevels) {
		return fmt.Errorf("invalid log_level %q, must be one of: %v", config.General.LogLevel, validLogLevels)
	}

	validFormats := []string{"json", "csv", "tsv"}
	if !stringInSlice(config.General.OutputFormat, validFormats) {
		return fmt.Errorf("invalid output_format %q, must be one of: %v", config.General.OutputFormat, validFormats)
	}

	validAuthMethods := []string{authMethodConfigFile, authMethodInstancePrincipal}
	if !stringInSlice(config.Auth.Method, validAuthMethods) {
		return fmt.Errorf("invalid auth method %q, must be one of: %v", config.Auth.Method, validAuthMethods)
	}

	if config.General.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %d", config.General.Timeout)
	}

	if config.Walk.MaxCompartmentWorkers <= 0 {
		return fmt.Errorf("max_compartment_workers must be positive, got: %d", config.Walk.MaxCompartmentWorkers)
	}
	if config.Walk.MaxDetailWorkers <= 0 {
		return fmt.Errorf("max_detail_workers must be positive, got: %d", config.Walk.MaxDetailWorkers)
	}
	if config.Walk.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got: %d", config.Walk.MaxRetries)
	}

	if err := ValidateFilterConfig(config.Filters); err != nil {
		return err
	}

	return nil
}

// RetryPolicy derives the bounded backoff policy from the walk
// settings.
func (c *AppConfig) RetryPolicy() retryPolicy {
	return retryPolicy{
		MaxRetries: c.Walk.MaxRetries,
		BaseDelay:  time.Duration(c.Walk.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(c.Walk.RetryMaxDelayMs) * time.Millisecond,
	}
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(config *AppConfig, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// GenerateDefaultConfigFile creates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	return SaveConfig(getDefaultConfig(), filename)
}

// MergeWithCLIArgs merges CLI arguments over file settings. CLI
// arguments have higher priority than the configuration file.
func MergeWithCLIArgs(config *AppConfig, cli CLIOverrides) {
	if cli.Timeout != nil && *cli.Timeout > 0 {
		config.General.Timeout = *cli.Timeout
	}
	if cli.LogLevel != nil && *cli.LogLevel != "" {
		config.General.LogLevel = *cli.LogLevel
	}
	if cli.Format != nil && *cli.Format != "" {
		config.General.OutputFormat = *cli.Format
	}
	if cli.Progress != nil {
		config.General.Progress = *cli.Progress
	}
	if cli.OutputFile != nil && *cli.OutputFile != "" {
		config.Output.File = *cli.OutputFile
	}
	if cli.TenancyID != nil && *cli.TenancyID != "" {
		config.Tenancy.ID = *cli.TenancyID
	}
	if cli.IncludeCompartments != nil && *cli.IncludeCompartments != "" {
		config.Filters.IncludeCompartments = ParseCompartmentList(*cli.IncludeCompartments)
	}
	if cli.ExcludeCompartments != nil && *cli.ExcludeCompartments != "" {
		config.Filters.ExcludeCompartments = ParseCompartmentList(*cli.ExcludeCompartments)
	}
	if cli.CompartmentWorkers != nil && *cli.CompartmentWorkers > 0 {
		config.Walk.MaxCompartmentWorkers = *cli.CompartmentWorkers
	}
	if cli.DetailWorkers != nil && *cli.DetailWorkers > 0 {
		config.Walk.MaxDetailWorkers = *cli.DetailWorkers
	}
}

// CLIOverrides carries the flag values that may override file
// configuration; nil pointers mean the flag was not set.
type CLIOverrides struct {
	Timeout             *int
	LogLevel            *string
	Format              *string
	Progress            *bool
	OutputFile          *string
	TenancyID           *string
	IncludeCompartments *string
	ExcludeCompartments *string
	CompartmentWorkers  *int
	DetailWorkers       *int
}
