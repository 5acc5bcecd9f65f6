package cliconfig

// MergeConfig merges source config into target, updating sources tracking.
// Only non-zero values from source are applied.
func MergeConfig(target, source *CLIConfig, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}

	if source.BaseURL != "" {
		target.BaseURL = source.BaseURL
		target.Sources["baseUrl"] = sourceType
	}
	if source.Dispatch != "" {
		target.Dispatch = source.Dispatch
		target.Sources["dispatch"] = sourceType
	}
	if source.Timeout != 0 {
		target.Timeout = source.Timeout
		target.Sources["timeout"] = sourceType
	}
	if len(source.Stubs) > 0 {
		target.Stubs = append([]string(nil), source.Stubs...)
		target.Sources["stubs"] = sourceType
	}
	if source.ReporterStorage != "" {
		target.ReporterStorage = source.ReporterStorage
		target.Sources["reporterStorage"] = sourceType
	}
	if source.HistorySize != 0 {
		target.HistorySize = source.HistorySize
		target.Sources["historySize"] = sourceType
	}
	if source.OTLPEndpoint != "" {
		target.OTLPEndpoint = source.OTLPEndpoint
		target.Sources["otlpEndpoint"] = sourceType
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
		target.Sources["logLevel"] = sourceType
	}
	if source.LogFormat != "" {
		target.LogFormat = source.LogFormat
		target.Sources["logFormat"] = sourceType
	}
	if source.LogFile != "" {
		target.LogFile = source.LogFile
		target.Sources["logFile"] = sourceType
	}
	if boolIsSet(source, "verbose") {
		target.Verbose = source.Verbose
		target.Sources["verbose"] = sourceType
	}
	if boolIsSet(source, "json") {
		target.JSON = source.JSON
		target.Sources["json"] = sourceType
	}
}

// boolIsSet reports whether a boolean field was explicitly set in cfg.
// Configs built without SetFields only merge true values.
func boolIsSet(cfg *CLIConfig, yamlKey string) bool {
	if cfg.SetFields != nil {
		return cfg.SetFields[yamlKey]
	}
	switch yamlKey {
	case "verbose":
		return cfg.Verbose
	case "json":
		return cfg.JSON
	}
	return false
}
