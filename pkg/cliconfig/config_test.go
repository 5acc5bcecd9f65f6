package cliconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/registry"
	"github.com/getmockd/netclient/pkg/stub"
)

func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  CLIConfig
		wantErr string
	}{
		{
			name:    "valid defaults",
			config:  *NewDefault(),
			wantErr: "",
		},
		{
			name: "valid custom values",
			config: CLIConfig{
				BaseURL:         "https://api.example.com/v1",
				Dispatch:        "serial",
				Timeout:         5 * time.Second,
				ReporterStorage: "weak",
				LogLevel:        "DEBUG",
				LogFormat:       "json",
				Stubs:           []string{"stubs/**/*.yaml"},
			},
			wantErr: "",
		},
		{
			name:    "relative base url",
			config:  CLIConfig{BaseURL: "/api"},
			wantErr: `baseUrl "/api" must be absolute`,
		},
		{
			name:    "unknown dispatch",
			config:  CLIConfig{Dispatch: "batched"},
			wantErr: `unknown dispatch mode "batched"`,
		},
		{
			name:    "negative timeout",
			config:  CLIConfig{Timeout: -time.Second},
			wantErr: "timeout -1s is negative",
		},
		{
			name:    "unknown storage policy",
			config:  CLIConfig{ReporterStorage: "soft"},
			wantErr: "reporterStorage",
		},
		{
			name:    "otlp endpoint without scheme",
			config:  CLIConfig{OTLPEndpoint: "localhost:4318"},
			wantErr: "must be an http(s) URL",
		},
		{
			name:    "history too large",
			config:  CLIConfig{HistorySize: 200000},
			wantErr: "historySize 200000 is out of range",
		},
		{
			name:    "bad log level",
			config:  CLIConfig{LogLevel: "trace"},
			wantErr: `logLevel "trace"`,
		},
		{
			name:    "bad log format",
			config:  CLIConfig{LogFormat: "xml"},
			wantErr: `logFormat "xml"`,
		},
		{
			name:    "empty stub pattern",
			config:  CLIConfig{Stubs: []string{"a.json", " "}},
			wantErr: "stubs contains an empty pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.wantErr)
				} else if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
				}
			}
		})
	}
}

func TestMergeConfig_BasicFields(t *testing.T) {
	t.Run("merges non-zero values", func(t *testing.T) {
		target := NewDefault()
		source := &CLIConfig{
			BaseURL:   "http://custom:9090",
			Timeout:   time.Second,
			Stubs:     []string{"a.json"},
			SetFields: map[string]bool{"baseUrl": true, "timeout": true, "stubs": true},
		}

		MergeConfig(target, source, SourceLocal)

		if target.BaseURL != "http://custom:9090" {
			t.Errorf("expected custom base URL, got %q", target.BaseURL)
		}
		if target.Timeout != time.Second {
			t.Errorf("expected 1s timeout, got %s", target.Timeout)
		}
		if target.Sources["timeout"] != SourceLocal {
			t.Errorf("expected source 'local', got %q", target.Sources["timeout"])
		}
		source.Stubs[0] = "changed.json"
		if target.Stubs[0] != "a.json" {
			t.Error("expected stubs to be copied")
		}
	})

	t.Run("does not overwrite with zero values", func(t *testing.T) {
		target := NewDefault()
		MergeConfig(target, &CLIConfig{}, SourceLocal)

		if target.Dispatch != DefaultDispatch {
			t.Errorf("expected default dispatch, got %q", target.Dispatch)
		}
		if target.Sources["dispatch"] != SourceDefault {
			t.Errorf("expected source 'default', got %q", target.Sources["dispatch"])
		}
	})

	t.Run("handles boolean false with SetFields", func(t *testing.T) {
		target := NewDefault()
		target.Verbose = true

		MergeConfig(target, &CLIConfig{SetFields: map[string]bool{"verbose": true}}, SourceLocal)

		if target.Verbose {
			t.Error("expected verbose to be false after merge")
		}
	})

	t.Run("does not merge boolean false without SetFields", func(t *testing.T) {
		target := NewDefault()
		target.JSON = true

		MergeConfig(target, &CLIConfig{}, SourceLocal)

		if !target.JSON {
			t.Error("expected json to remain true without SetFields")
		}
	})

	t.Run("nil source is no-op", func(t *testing.T) {
		target := NewDefault()
		MergeConfig(target, nil, SourceLocal)

		if target.Timeout != DefaultTimeout {
			t.Errorf("expected timeout unchanged, got %s", target.Timeout)
		}
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.yaml")
		writeFile(t, path, "baseUrl: https://example.com\ntimeout: 1500ms\nstubs:\n  - a.json\n  - 'b/*.yaml'\nverbose: false\n")

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Timeout != 1500*time.Millisecond {
			t.Errorf("expected 1.5s, got %s", cfg.Timeout)
		}
		if len(cfg.Stubs) != 2 || cfg.Stubs[1] != "b/*.yaml" {
			t.Errorf("unexpected stubs %v", cfg.Stubs)
		}
		if !cfg.SetFields["verbose"] || cfg.SetFields["json"] {
			t.Errorf("unexpected set fields %v", cfg.SetFields)
		}
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		writeFile(t, path, "")
		if _, err := LoadConfigFile(path); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(dir, "typo.yaml")
		writeFile(t, path, "dispatch: serial\nbaseURL: http://x\n")

		_, err := LoadConfigFile(path)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if ce.Line != 2 {
			t.Errorf("expected line 2, got %d (%s)", ce.Line, ce.Message)
		}
		if !strings.HasPrefix(ce.Error(), path+" (line 2): ") {
			t.Errorf("unexpected message %q", ce.Error())
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := LoadConfigFile(filepath.Join(dir, "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{EnvBaseURL, EnvDispatch, EnvTimeout, EnvStubs, EnvReporterStorage,
		EnvHistorySize, EnvOTLPEndpoint, EnvLogLevel, EnvLogFormat, EnvLogFile, EnvVerbose, EnvConfig} {
		t.Setenv(env, "")
	}
}

func TestLoadAll_Precedence(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Chdir(work)

	writeFile(t, filepath.Join(home, "netclient", "config.yaml"), "baseUrl: https://global.example\ndispatch: serial\nlogLevel: info\n")
	writeFile(t, filepath.Join(work, ".netclientrc.yaml"), "baseUrl: https://local.example\n")
	t.Setenv(EnvTimeout, "7")
	t.Setenv(EnvStubs, "a.json, b/*.yml")

	cfg, err := LoadAll("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		key, value, source string
	}{
		{"baseUrl", cfg.BaseURL, SourceLocal},
		{"dispatch", cfg.Dispatch, SourceGlobal},
		{"logLevel", cfg.LogLevel, SourceGlobal},
		{"logFormat", cfg.LogFormat, SourceDefault},
		{"timeout", cfg.Timeout.String(), SourceEnv},
	}
	for _, c := range checks {
		if cfg.Sources[c.key] != c.source {
			t.Errorf("%s: expected source %q, got %q", c.key, c.source, cfg.Sources[c.key])
		}
	}
	if cfg.BaseURL != "https://local.example" || cfg.Dispatch != "serial" || cfg.Timeout != 7*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Stubs) != 2 || cfg.Stubs[1] != "b/*.yml" {
		t.Errorf("unexpected stubs %v", cfg.Stubs)
	}
}

func TestLoadAll_ExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	work := t.TempDir()
	t.Chdir(work)
	writeFile(t, filepath.Join(work, ".netclientrc.yaml"), "dispatch: serial\n")
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, explicit, "logFormat: json\n")

	cfg, err := LoadAll(explicit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dispatch != DefaultDispatch {
		t.Errorf("explicit file should replace local search, got dispatch %q", cfg.Dispatch)
	}
	if cfg.LogFormat != "json" || cfg.Sources["configFile:local"] != explicit {
		t.Errorf("unexpected config %+v", cfg)
	}

	writeFile(t, explicit, "logFormat: [\n")
	if _, err := LoadAll(explicit); err == nil {
		t.Error("expected malformed file to fail")
	}
}

func TestLoadEnvConfig_Errors(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTimeout, "soon")
	if err := LoadEnvConfig(NewDefault()); err == nil || !strings.Contains(err.Error(), EnvTimeout) {
		t.Errorf("expected timeout error, got %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvHistorySize, "lots")
	if err := LoadEnvConfig(NewDefault()); err == nil || !strings.Contains(err.Error(), EnvHistorySize) {
		t.Errorf("expected history size error, got %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvVerbose, "yes")
	cfg := &CLIConfig{}
	if err := LoadEnvConfig(cfg); err != nil || !cfg.Verbose || cfg.Sources["verbose"] != SourceEnv {
		t.Errorf("expected verbose from env, got %v %+v", err, cfg)
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"1m30s", 90 * time.Second, false},
		{"later", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeout(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTimeout(%q) = %s, %v", tt.in, got, err)
		}
	}
}

func TestCLIConfig_ClientConfig(t *testing.T) {
	cfg := NewDefault()
	cfg.BaseURL = "http://localhost:8080"
	cfg.Dispatch = "serial"
	cfg.Stubs = []string{"../stub/testdata/StubsList.json", "../stub/testdata/nested/*"}

	store, err := cfg.LoadStubs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Count() != 5 {
		t.Errorf("expected 5 stubs, got %d", store.Count())
	}

	cc, err := cfg.ClientConfig(store, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc.Dispatch != client.DispatchSerial || cc.Timeout != DefaultTimeout || cc.Stubs != store {
		t.Errorf("unexpected client config %+v", cc)
	}

	cfg.Dispatch = "bogus"
	if _, err := cfg.ClientConfig(nil, nil); err == nil {
		t.Error("expected dispatch error")
	}

	cfg.Stubs = []string{"../stub/testdata/missing.json"}
	if _, err := cfg.LoadStubs(nil); !stub.IsFileNotExists(err) {
		t.Errorf("expected FileNotExists, got %v", err)
	}

	if got := (&CLIConfig{}).StoragePolicy(); got != registry.Strong {
		t.Errorf("expected strong default, got %v", got)
	}
	if got := (&CLIConfig{ReporterStorage: "weak"}).StoragePolicy(); got != registry.Weak {
		t.Errorf("expected weak, got %v", got)
	}
}

func TestCLIConfig_OpenLogger(t *testing.T) {
	var console strings.Builder
	cfg := NewDefault()
	cfg.LogFile = filepath.Join(t.TempDir(), "netclient.log")

	log, closeLog, err := cfg.OpenLogger(&console)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Debug("debug only")
	log.Warn("both")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"debug only"`) || !strings.Contains(string(data), `"msg":"both"`) {
		t.Errorf("unexpected log file %q", data)
	}
	if strings.Contains(console.String(), "debug only") || !strings.Contains(console.String(), "both") {
		t.Errorf("unexpected console output %q", console.String())
	}

	cfg.LogFile = filepath.Join(t.TempDir(), "missing", "dir", "x.log")
	if _, _, err := cfg.OpenLogger(&console); err == nil {
		t.Error("expected error for unwritable log file")
	}
}
