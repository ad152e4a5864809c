package domain

// Config mirrors ~/.litvis/config.yaml.
type Config struct {
	ConfigFormatVersion string              `yaml:"config_format_version"`
	Cache               CacheSettings       `yaml:"cache"`
	GC                  GCSettings          `yaml:"gc"`
	Compiler            CompilerSettings    `yaml:"compiler"`
	Environment         EnvironmentSettings `yaml:"environment"`
	Execution           ExecutionSettings   `yaml:"execution"`
	History             HistorySettings     `yaml:"history"`
	Parser              ParserSettings      `yaml:"parser"`
}

// CacheSettings locates the cache tree and bounds lock waits.
type CacheSettings struct {
	Dir                string `yaml:"dir"`
	EnvironmentTimeout string `yaml:"environment_timeout"`
	ProgramTimeout     string `yaml:"program_timeout"`
}

// GCSettings bounds cache growth.
type GCSettings struct {
	Interval           string `yaml:"interval"`
	MaxProgramCount    int    `yaml:"max_program_count"`
	MaxProgramLifetime string `yaml:"max_program_lifetime"`
}

// CompilerSettings names the external binaries.
type CompilerSettings struct {
	Elm            string `yaml:"elm"`
	RunElm         string `yaml:"run_elm"`
	ElmVersion     string `yaml:"elm_version"`
	CompileTimeout string `yaml:"compile_timeout"`
}

// EnvironmentSettings are defaults merged under document front matter.
type EnvironmentSettings struct {
	Dependencies      map[string]DependencyVersion `yaml:"dependencies"`
	SourceDirectories []string                     `yaml:"source_directories"`
}

// ExecutionSettings controls program fan-out.
type ExecutionSettings struct {
	Concurrency int `yaml:"concurrency"`
}

// HistorySettings configures the run history store.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ParserSettings sizes the parsed value cache.
type ParserSettings struct {
	CacheSize int `yaml:"cache_size"`
}
