// Package cliconfig provides configuration types and loading for the netclient CLI.
package cliconfig

import (
	"time"
)

// CLIConfig represents the complete configuration for the netclient CLI.
// Configuration values can come from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Local config file (.netclientrc.yaml in current directory)
// 4. Global config file (~/.config/netclient/config.yaml)
// 5. Default values (lowest priority)
type CLIConfig struct {
	// Client settings
	BaseURL  string        `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Dispatch string        `yaml:"dispatch" json:"dispatch"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`

	// Stub files or glob patterns consulted before the network
	Stubs []string `yaml:"stubs,omitempty" json:"stubs,omitempty"`

	// Reporter settings
	ReporterStorage string `yaml:"reporterStorage" json:"reporterStorage"`
	HistorySize     int    `yaml:"historySize" json:"historySize"`

	// OTLPEndpoint receives request spans as OTLP/HTTP JSON when set
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`

	// Logging settings
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`
	// LogFile additionally receives debug-level JSON logs
	LogFile string `yaml:"logFile,omitempty" json:"logFile,omitempty"`

	// Output settings
	Verbose bool `yaml:"verbose" json:"verbose"`
	JSON    bool `yaml:"json" json:"json"`

	// Sources tracks where each value came from (for debugging)
	Sources map[string]string `yaml:"-" json:"-"`

	// SetFields records which keys were present in a loaded file, so an
	// explicit false can override a true from a lower-priority source.
	SetFields map[string]bool `yaml:"-" json:"-"`
}

// ConfigSource identifies where a config value originated.
const (
	SourceDefault = "default"
	SourceEnv     = "env"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFlag    = "flag"
)
