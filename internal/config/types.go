package config

import "time"

// Config represents the complete buildmaster configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Scripts    ScriptsConfig    `yaml:"scripts"`
	Output     OutputConfig     `yaml:"output"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	API        APIConfig        `yaml:"api"`
	History    HistoryConfig    `yaml:"history"`

	// SourcePath is the file the config was loaded from; empty for defaults.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	PIDFile   string `yaml:"pid_file"`
}

// ScriptsConfig locates the builder scripts.
type ScriptsConfig struct {
	Dir string `yaml:"dir"`
	// Workdir is the working directory of spawned scripts. Defaults to Dir.
	Workdir   string `yaml:"workdir,omitempty"`
	Autostart bool   `yaml:"autostart"`
	Watch     bool   `yaml:"watch"`
}

// OutputConfig controls how child output is read.
type OutputConfig struct {
	// Ordering is "interleaved" (one reader per stream) or "sequential"
	// (stdout drained to EOF before stderr).
	Ordering      string `yaml:"ordering"`
	ChannelBuffer int    `yaml:"channel_buffer"`
	MaxLineBytes  int    `yaml:"max_line_bytes"`
}

// SupervisorConfig controls process group termination.
type SupervisorConfig struct {
	StopSignal string        `yaml:"stop_signal"`
	KillGrace  time.Duration `yaml:"kill_grace"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// HistoryConfig defines the deployment history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

const (
	OrderingInterleaved = "interleaved"
	OrderingSequential  = "sequential"
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "buildmaster",
			LogLevel:  "info",
			LogFormat: "json",
			PIDFile:   "./data/buildmaster.lock",
		},
		Scripts: ScriptsConfig{
			Dir:       "./build-scripts",
			Autostart: true,
		},
		Output: OutputConfig{
			Ordering:      OrderingInterleaved,
			ChannelBuffer: 4096,
			MaxLineBytes:  1024 * 1024,
		},
		Supervisor: SupervisorConfig{
			StopSignal: "SIGTERM",
			KillGrace:  5 * time.Second,
		},
		API: APIConfig{
			Listen: "0.0.0.0:8016",
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "./data/history.db",
		},
	}
}

// ScriptsWorkdir returns the working directory for spawned scripts.
func (c *Config) ScriptsWorkdir() string {
	if c.Scripts.Workdir != "" {
		return c.Scripts.Workdir
	}
	return c.Scripts.Dir
}
