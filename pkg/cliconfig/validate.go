package cliconfig

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/registry"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks every field and joins the problems found.
func (c *CLIConfig) Validate() error {
	var errs []error

	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("baseUrl %q is invalid: %w", c.BaseURL, err))
		case u.Scheme == "" || u.Host == "":
			errs = append(errs, fmt.Errorf("baseUrl %q must be absolute", c.BaseURL))
		}
	}
	if c.OTLPEndpoint != "" {
		if u, err := url.Parse(c.OTLPEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("otlpEndpoint %q must be an http(s) URL", c.OTLPEndpoint))
		}
	}
	if _, err := client.ParseDispatchMode(c.Dispatch); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", c.Timeout))
	}
	if c.ReporterStorage != "" {
		if _, err := registry.ParseStoragePolicy(c.ReporterStorage); err != nil {
			errs = append(errs, fmt.Errorf("reporterStorage: %w", err))
		}
	}
	if c.HistorySize < 0 || c.HistorySize > 100000 {
		errs = append(errs, fmt.Errorf("historySize %d is out of range", c.HistorySize))
	}
	if c.LogLevel != "" && !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("logLevel %q is not one of %s", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if c.LogFormat != "" && !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errs = append(errs, fmt.Errorf("logFormat %q is not one of %s", c.LogFormat, strings.Join(validLogFormats, ", ")))
	}
	for _, p := range c.Stubs {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, errors.New("stubs contains an empty pattern"))
			break
		}
	}
	return errors.Join(errs...)
}
