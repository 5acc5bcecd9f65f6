package cliconfig

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory for global config
	GlobalConfigDir = "netclient"
)

// LocalConfigFileNames are the names to search for local config (in order).
var LocalConfigFileNames = []string{".netclientrc.yaml", ".netclientrc.yml"}

// GlobalConfigFileNames are the names to search for global config (in order).
var GlobalConfigFileNames = []string{"config.yaml", "config.yml"}

// FindLocalConfig searches for .netclientrc.yaml or .netclientrc.yml in the current directory.
func FindLocalConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return firstExisting(cwd, LocalConfigFileNames), nil
}

// FindGlobalConfig returns the path to the global config file.
// Returns empty string if not found.
func FindGlobalConfig() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		//nolint:nilerr // no config dir means no global config
		return "", nil
	}
	return firstExisting(filepath.Join(configDir, GlobalConfigDir), GlobalConfigFileNames), nil
}

func firstExisting(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// SearchPaths returns every path LoadAll considers, global first.
func SearchPaths() []string {
	var paths []string
	if configDir, err := os.UserConfigDir(); err == nil {
		for _, name := range GlobalConfigFileNames {
			paths = append(paths, filepath.Join(configDir, GlobalConfigDir, name))
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		for _, name := range LocalConfigFileNames {
			paths = append(paths, filepath.Join(cwd, name))
		}
	}
	return paths
}

// LoadConfigFile loads a CLIConfig from a YAML file. Unknown keys are
// rejected.
func LoadConfigFile(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg CLIConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, newConfigError(path, err)
	}

	var present map[string]any
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, newConfigError(path, err)
	}
	cfg.SetFields = make(map[string]bool, len(present))
	for key := range present {
		cfg.SetFields[key] = true
	}
	cfg.Sources = make(map[string]string)
	return &cfg, nil
}

// ConfigError represents a configuration file error with location info.
type ConfigError struct {
	Path    string
	Line    int
	Message string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return e.Path + " (line " + strconv.Itoa(e.Line) + "): " + e.Message
	}
	return e.Path + ": " + e.Message
}

var yamlLine = regexp.MustCompile(`line (\d+): `)

func newConfigError(path string, err error) *ConfigError {
	msg := err.Error()
	ce := &ConfigError{Path: path, Message: msg}
	if m := yamlLine.FindStringSubmatchIndex(msg); m != nil {
		ce.Line, _ = strconv.Atoi(msg[m[2]:m[3]])
		ce.Message = msg[m[1]:]
	}
	return ce
}

// LoadAll loads configuration from all sources and merges them.
// Precedence: env > local config > global config > defaults. When configFile
// is set it replaces the local config search. Flags are applied by the caller.
func LoadAll(configFile string) (*CLIConfig, error) {
	cfg := NewDefault()

	globalPath, err := FindGlobalConfig()
	if err != nil {
		return nil, err
	}
	if err := mergeFile(cfg, globalPath, SourceGlobal); err != nil {
		return nil, err
	}

	localPath := configFile
	if localPath == "" {
		localPath = os.Getenv(EnvConfig)
	}
	if localPath == "" {
		if localPath, err = FindLocalConfig(); err != nil {
			return nil, err
		}
	}
	if err := mergeFile(cfg, localPath, SourceLocal); err != nil {
		return nil, err
	}

	if err := LoadEnvConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *CLIConfig, path, source string) error {
	if path == "" {
		return nil
	}
	fileCfg, err := LoadConfigFile(path)
	if err != nil {
		return err
	}
	MergeConfig(cfg, fileCfg, source)
	cfg.Sources["configFile:"+source] = path
	return nil
}
