package cliconfig

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/logging"
	"github.com/getmockd/netclient/pkg/registry"
	"github.com/getmockd/netclient/pkg/stub"
)

// OpenLogger builds the CLI logger writing to w. With LogFile set, records
// are also appended to that file as debug-level JSON; the returned close
// function releases it.
func (c *CLIConfig) OpenLogger(w io.Writer) (*slog.Logger, func() error, error) {
	console := logging.Config{
		Level:     logging.ParseLevel(c.LogLevel),
		Format:    logging.ParseFormat(c.LogFormat),
		Output:    w,
		Component: "netclient",
	}
	if c.LogFile == "" {
		return logging.New(console), func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logging.Config{
		Level:     logging.LevelDebug,
		Format:    logging.FormatJSON,
		Output:    f,
		Component: "netclient",
	}
	return logging.NewMulti(console, file), f.Close, nil
}

// StoragePolicy returns the policy for CLI reporters, Strong when unset.
func (c *CLIConfig) StoragePolicy() registry.StoragePolicy {
	if c.ReporterStorage == "" {
		return registry.Strong
	}
	p, err := registry.ParseStoragePolicy(c.ReporterStorage)
	if err != nil {
		return registry.Strong
	}
	return p
}

// LoadStubs reads every configured pattern into a fresh store. A pattern
// without glob metacharacters must name an existing file.
func (c *CLIConfig) LoadStubs(log *slog.Logger) (*stub.Store, error) {
	store := stub.NewStore()
	store.SetLogger(log)
	for _, pattern := range c.Stubs {
		load := store.LoadGlob
		if !strings.ContainsAny(pattern, "*?[{") {
			load = store.LoadFile
		}
		if _, err := load(pattern); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// ClientConfig builds a client.Config. stubs may be nil.
func (c *CLIConfig) ClientConfig(stubs *stub.Store, log *slog.Logger) (client.Config, error) {
	mode, err := client.ParseDispatchMode(c.Dispatch)
	if err != nil {
		return client.Config{}, err
	}
	return client.Config{
		BaseURL:  c.BaseURL,
		Dispatch: mode,
		Timeout:  c.Timeout,
		Stubs:    stubs,
		Logger:   log,
	}, nil
}
