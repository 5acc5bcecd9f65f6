package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names
const (
	EnvBaseURL         = "NETCLIENT_BASE_URL"
	EnvDispatch        = "NETCLIENT_DISPATCH"
	EnvTimeout         = "NETCLIENT_TIMEOUT"
	EnvStubs           = "NETCLIENT_STUBS"
	EnvReporterStorage = "NETCLIENT_REPORTER_STORAGE"
	EnvHistorySize     = "NETCLIENT_HISTORY_SIZE"
	EnvOTLPEndpoint    = "NETCLIENT_OTLP_ENDPOINT"
	EnvLogLevel        = "NETCLIENT_LOG_LEVEL"
	EnvLogFormat       = "NETCLIENT_LOG_FORMAT"
	EnvLogFile         = "NETCLIENT_LOG_FILE"
	EnvVerbose         = "NETCLIENT_VERBOSE"
	EnvConfig          = "NETCLIENT_CONFIG"
)

// LoadEnvConfig applies environment variables that are present. A malformed
// numeric or duration value is an error naming the variable.
func LoadEnvConfig(cfg *CLIConfig) error {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	setString := func(env, key string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
			cfg.Sources[key] = SourceEnv
		}
	}
	setString(EnvBaseURL, "baseUrl", &cfg.BaseURL)
	setString(EnvDispatch, "dispatch", &cfg.Dispatch)
	setString(EnvReporterStorage, "reporterStorage", &cfg.ReporterStorage)
	setString(EnvOTLPEndpoint, "otlpEndpoint", &cfg.OTLPEndpoint)
	setString(EnvLogLevel, "logLevel", &cfg.LogLevel)
	setString(EnvLogFormat, "logFormat", &cfg.LogFormat)
	setString(EnvLogFile, "logFile", &cfg.LogFile)

	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := ParseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
		cfg.Sources["timeout"] = SourceEnv
	}

	if v := os.Getenv(EnvHistorySize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHistorySize, err)
		}
		cfg.HistorySize = n
		cfg.Sources["historySize"] = SourceEnv
	}

	if v := os.Getenv(EnvStubs); v != "" {
		cfg.Stubs = nil
		for p := range strings.SplitSeq(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Stubs = append(cfg.Stubs, p)
			}
		}
		cfg.Sources["stubs"] = SourceEnv
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Verbose = v == "true" || v == "1" || v == "yes"
		cfg.Sources["verbose"] = SourceEnv
	}
	return nil
}

// ParseTimeout accepts a Go duration ("1500ms", "2m") or a bare number of
// seconds.
func ParseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return d, nil
}
