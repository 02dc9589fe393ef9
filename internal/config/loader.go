package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. Keys missing from the file
// keep their Defaults() value.
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
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Relative state paths are resolved against the config file location.
	if cfg.State.Path != "" && cfg.State.Path != ":memory:" && !filepath.IsAbs(cfg.State.Path) {
		cfg.State.Path = filepath.Join(filepath.Dir(absPath), cfg.State.Path)
	}
	return cfg, nil
}

// Parse decodes YAML bytes on top of Defaults() and validates the result.
func Parse(data []byte) (*Config, error) {
	interpolated := interpolateEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	normalize(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $CATALOGD_CONFIG, ~/.config/catalogd/config.yaml,
// /etc/catalogd/config.yaml, ./config.yaml.
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("CATALOGD_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	candidates := make([]string, 0, 3)
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "catalogd", "config.yaml"))
	}
	candidates = append(candidates, "/etc/catalogd/config.yaml", "./config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf("no config found (checked: $CATALOGD_CONFIG, ~/.config/catalogd/config.yaml, /etc/catalogd/config.yaml, ./config.yaml)")
}

// NormalizeExtensions lower-cases extensions and strips a leading dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func normalize(cfg *Config) {
	cfg.Service.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Service.LogLevel))
	cfg.Service.LogFormat = strings.ToLower(strings.TrimSpace(cfg.Service.LogFormat))
	cfg.Scanner.IncludeExt = NormalizeExtensions(cfg.Scanner.IncludeExt)
	cfg.Scanner.ExcludeExt = NormalizeExtensions(cfg.Scanner.ExcludeExt)
	cfg.Scanner.HashAlgorithm = strings.ToLower(strings.TrimSpace(cfg.Scanner.HashAlgorithm))
	cfg.Janitor.TempExtensions = NormalizeExtensions(cfg.Janitor.TempExtensions)
	cfg.Janitor.HashAlgorithm = strings.ToLower(strings.TrimSpace(cfg.Janitor.HashAlgorithm))
	for i := range cfg.Schedules {
		cfg.Schedules[i].IncludeExt = NormalizeExtensions(cfg.Schedules[i].IncludeExt)
		cfg.Schedules[i].ExcludeExt = NormalizeExtensions(cfg.Schedules[i].ExcludeExt)
	}
}

// interpolateEnv replaces ${VAR} with the environment value. Unset variables
// are left in place so validation can report them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	if cfg.Service.TickInterval <= 0 {
		return fmt.Errorf("service.tick_interval must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.Scanner.BatchSize <= 0 {
		return fmt.Errorf("scanner.batch_size must be positive")
	}
	if cfg.Scanner.ProgressEvery <= 0 {
		return fmt.Errorf("scanner.progress_every must be positive")
	}
	if cfg.Scanner.HashMaxSize < 0 {
		return fmt.Errorf("scanner.hash_max_size must not be negative")
	}
	if cfg.Scanner.HashAlgorithm != "sha256" {
		return fmt.Errorf("scanner.hash_algorithm must be sha256 (catalog digests are stored as sha256), got %q", cfg.Scanner.HashAlgorithm)
	}
	for i, root := range cfg.Scanner.Roots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("scanner.roots[%d] must be an absolute path (got %q)", i, root)
		}
	}

	if cfg.Janitor.TempAge <= 0 {
		return fmt.Errorf("janitor.temp_age must be positive")
	}
	if cfg.Janitor.HashAlgorithm != "sha256" && cfg.Janitor.HashAlgorithm != "blake3" {
		return fmt.Errorf("janitor.hash_algorithm must be sha256 or blake3 (got %q)", cfg.Janitor.HashAlgorithm)
	}
	for i, p := range cfg.Janitor.ProtectedPaths {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("janitor.protected_paths[%d] must be an absolute path (got %q)", i, p)
		}
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api.enabled is true")
		}
		if err := checkUnresolved("api.auth.api_key", cfg.API.Auth.APIKey); err != nil {
			return err
		}
		for i, tok := range cfg.API.Auth.Tokens {
			if tok.Token == "" {
				return fmt.Errorf("api.auth.tokens[%d].token is required", i)
			}
			if err := checkUnresolved(fmt.Sprintf("api.auth.tokens[%d].token", i), tok.Token); err != nil {
				return err
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("api.auth.tokens[%d].scopes must not be empty", i)
			}
		}
		if cfg.API.Auth.APIKey == "" && len(cfg.API.Auth.Tokens) == 0 {
			return fmt.Errorf("api.auth requires api_key or tokens when api.enabled is true")
		}
	}

	names := make(map[string]bool, len(cfg.Schedules))
	for i, s := range cfg.Schedules {
		if s.Name == "" {
			return fmt.Errorf("schedules[%d].name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("schedules[%d].name %q is duplicated", i, s.Name)
		}
		names[s.Name] = true
		if len(s.Roots) == 0 {
			return fmt.Errorf("schedules[%d] (%s): roots must not be empty", i, s.Name)
		}
		if s.Every == "" {
			return fmt.Errorf("schedules[%d] (%s): every is required", i, s.Name)
		}
		if _, err := ParseInterval(s.Every); err != nil {
			return fmt.Errorf("schedules[%d] (%s): %w", i, s.Name, err)
		}
		if s.Jitter < 0 {
			return fmt.Errorf("schedules[%d] (%s): jitter must not be negative", i, s.Name)
		}
		for j, root := range s.Roots {
			if !filepath.IsAbs(root) {
				return fmt.Errorf("schedules[%d] (%s): roots[%d] must be an absolute path (got %q)", i, s.Name, j, root)
			}
		}
	}

	return nil
}

// ParseInterval converts a schedule "every" value to a duration. It accepts
// hourly, daily and weekly, day/week counts like "3d" or "2w", and Go
// durations.
func ParseInterval(interval string) (time.Duration, error) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	switch interval {
	case "hourly":
		return time.Hour, nil
	case "daily":
		return 24 * time.Hour, nil
	case "weekly":
		return 7 * 24 * time.Hour, nil
	}

	if n := len(interval); n > 1 && (interval[n-1] == 'd' || interval[n-1] == 'w') {
		count, err := strconv.Atoi(interval[:n-1])
		if err == nil {
			if count <= 0 {
				return 0, fmt.Errorf("schedule interval must be positive: %q", interval)
			}
			unit := 24 * time.Hour
			if interval[n-1] == 'w' {
				unit *= 7
			}
			return time.Duration(count) * unit, nil
		}
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule interval %q: %w", interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("schedule interval must be positive: %q", interval)
	}
	return d, nil
}

func checkUnresolved(field, value string) error {
	if !envVarPattern.MatchString(value) {
		return nil
	}
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return fmt.Errorf("%s: unresolved environment variable", field)
}
