package cliconfig

import "time"

// DefaultDispatch runs reporter hooks concurrently.
const DefaultDispatch = "parallel"

// DefaultTimeout bounds a single network request.
const DefaultTimeout = 30 * time.Second

// DefaultReporterStorage holds CLI reporters strongly; the CLI keeps no other
// reference to them.
const DefaultReporterStorage = "strong"

// DefaultHistorySize is the number of outcomes kept by the history reporter.
const DefaultHistorySize = 1000

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "warn"

// DefaultLogFormat is the default log format.
const DefaultLogFormat = "text"

// NewDefault creates a new CLIConfig with default values.
func NewDefault() *CLIConfig {
	cfg := &CLIConfig{
		Dispatch:        DefaultDispatch,
		Timeout:         DefaultTimeout,
		ReporterStorage: DefaultReporterStorage,
		HistorySize:     DefaultHistorySize,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		Sources:         make(map[string]string),
	}

	for _, key := range []string{"dispatch", "timeout", "reporterStorage", "historySize", "logLevel", "logFormat"} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}
