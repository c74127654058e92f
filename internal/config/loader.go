package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrNoConfig is returned by Discover when no config file exists in any of the
// standard locations.
var ErrNoConfig = errors.New("no config found")

var validStopSignals = map[string]bool{
	"SIGTERM": true,
	"SIGINT":  true,
	"SIGHUP":  true,
	"SIGQUIT": true,
	"SIGKILL": true,
}

// Load reads and parses configuration from a file. Values missing from the
// file keep their defaults; relative paths are resolved against the file's
// directory.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath
	cfg.resolvePaths(filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Defaults() after ${VAR} interpolation.
// It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.Output.Ordering = strings.ToLower(strings.TrimSpace(cfg.Output.Ordering))
	cfg.Supervisor.StopSignal = normalizeSignal(cfg.Supervisor.StopSignal)
	return cfg, nil
}

// Discover finds the config file by checking standard locations.
// Priority order: $BUILDMASTER_CONFIG, ~/.config/buildmaster/config.yaml,
// /etc/buildmaster/config.yaml, ./config.yaml.
func Discover() (string, error) {
	candidates := make([]string, 0, 4)
	if p := os.Getenv("BUILDMASTER_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "buildmaster", "config.yaml"))
	}
	candidates = append(candidates, "/etc/buildmaster/config.yaml", "./config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w (checked: $BUILDMASTER_CONFIG, ~/.config/buildmaster, /etc/buildmaster, ./config.yaml)", ErrNoConfig)
}

// LoadOrDefault loads configPath, or the discovered config when configPath is
// empty. With nothing to discover it returns validated defaults.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		discovered, err := Discover()
		if errors.Is(err, ErrNoConfig) {
			cfg := Defaults()
			if err := validate(cfg); err != nil {
				return nil, fmt.Errorf("invalid configuration: %w", err)
			}
			return cfg, nil
		}
		if err != nil {
			return nil, err
		}
		configPath = discovered
	}
	return Load(configPath)
}

func (c *Config) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Scripts.Dir = resolve(c.Scripts.Dir)
	c.Scripts.Workdir = resolve(c.Scripts.Workdir)
	c.History.Path = resolve(c.History.Path)
	c.Service.PIDFile = resolve(c.Service.PIDFile)
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func normalizeSignal(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s != "" && !strings.HasPrefix(s, "SIG") {
		s = "SIG" + s
	}
	return s
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error { return validate(c) }

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if strings.TrimSpace(cfg.Scripts.Dir) == "" {
		return fmt.Errorf("scripts.dir is required")
	}
	if err := unresolved("scripts.dir", cfg.Scripts.Dir); err != nil {
		return err
	}
	if err := unresolved("scripts.workdir", cfg.Scripts.Workdir); err != nil {
		return err
	}

	switch cfg.Output.Ordering {
	case OrderingInterleaved, OrderingSequential:
	default:
		return fmt.Errorf("output.ordering must be %q or %q (got %q)", OrderingInterleaved, OrderingSequential, cfg.Output.Ordering)
	}
	if cfg.Output.ChannelBuffer <= 0 {
		return fmt.Errorf("output.channel_buffer must be positive")
	}
	if cfg.Output.MaxLineBytes <= 0 {
		return fmt.Errorf("output.max_line_bytes must be positive")
	}

	if !validStopSignals[cfg.Supervisor.StopSignal] {
		return fmt.Errorf("supervisor.stop_signal must be one of SIGTERM, SIGINT, SIGHUP, SIGQUIT, SIGKILL (got %q)", cfg.Supervisor.StopSignal)
	}
	if cfg.Supervisor.KillGrace < 0 {
		return fmt.Errorf("supervisor.kill_grace must not be negative")
	}

	if strings.TrimSpace(cfg.API.Listen) == "" {
		return fmt.Errorf("api.listen is required")
	}

	if cfg.History.Enabled {
		if cfg.History.Path == "" {
			return fmt.Errorf("history.path is required when history is enabled")
		}
		if err := unresolved("history.path", cfg.History.Path); err != nil {
			return err
		}
	}

	return nil
}

func unresolved(field, value string) error {
	if m := envVarPattern.FindStringSubmatch(value); len(m) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
	}
	return nil
}
