package config

import "time"

// Config represents the complete catalogd configuration.
type Config struct {
	Service   ServiceConfig    `yaml:"service"`
	State     StateConfig      `yaml:"state"`
	Scanner   ScannerConfig    `yaml:"scanner"`
	Janitor   JanitorConfig    `yaml:"janitor"`
	API       APIConfig        `yaml:"api,omitempty"`
	Schedules []ScheduleConfig `yaml:"schedules,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	TickInterval time.Duration `yaml:"tick_interval"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
}

// StateConfig defines where the catalog database lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// ScannerConfig holds defaults applied to scan start requests that omit them.
type ScannerConfig struct {
	Roots         []string `yaml:"roots"`
	IncludeExt    []string `yaml:"include_ext"`
	ExcludeExt    []string `yaml:"exclude_ext"`
	BatchSize     int      `yaml:"batch_size"`
	ComputeHashes bool     `yaml:"compute_hashes"`
	HashMaxSize   int64    `yaml:"hash_max_size"`
	ProgressEvery int      `yaml:"progress_every"`
	ReuseHashes   bool     `yaml:"reuse_hashes"`
	HashAlgorithm string   `yaml:"hash_algorithm"`
}

// JanitorConfig tunes the duplicate/stale-file policy engine.
type JanitorConfig struct {
	TempExtensions     []string      `yaml:"temp_extensions"`
	TempAge            time.Duration `yaml:"temp_age"`
	LargeFileThreshold int64         `yaml:"large_file_threshold"`
	MaxFiles           int           `yaml:"max_files"`
	HashMaxSize        int64         `yaml:"hash_max_size"`
	MaxGroups          int           `yaml:"max_groups"`
	MaxSuggestions     int           `yaml:"max_suggestions"`
	ProtectedPaths     []string      `yaml:"protected_paths"`
	HashAlgorithm      string        `yaml:"hash_algorithm"`
	UseCatalog         bool          `yaml:"use_catalog"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the single admin bearer token. Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// ScheduleConfig describes a recurring rescan of a set of roots.
type ScheduleConfig struct {
	Name          string        `yaml:"name"`
	Roots         []string      `yaml:"roots"`
	IncludeExt    []string      `yaml:"include_ext,omitempty"`
	ExcludeExt    []string      `yaml:"exclude_ext,omitempty"`
	Every         string        `yaml:"every"` // e.g. "30m", "hourly", "daily"
	Jitter        time.Duration `yaml:"jitter,omitempty"`
	ComputeHashes bool          `yaml:"compute_hashes,omitempty"`
}

const (
	mib = 1 << 20
	gib = 1 << 30
)

// DefaultTempExtensions lists extensions treated as temporary files.
var DefaultTempExtensions = []string{"tmp", "temp", "bak", "swp", "swo", "part", "partial", "crdownload", "~"}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "catalogd",
			TickInterval: 60 * time.Second,
			LogLevel:     "info",
			LogFormat:    "json",
		},
		State: StateConfig{
			Path: "./data/catalog.db",
		},
		Scanner: ScannerConfig{
			BatchSize:     1000,
			HashMaxSize:   100 * mib,
			ProgressEvery: 5000,
			ReuseHashes:   true,
			HashAlgorithm: "sha256",
		},
		Janitor: JanitorConfig{
			TempExtensions:     append([]string(nil), DefaultTempExtensions...),
			TempAge:            7 * 24 * time.Hour,
			LargeFileThreshold: gib,
			MaxFiles:           100000,
			HashMaxSize:        100 * mib,
			MaxGroups:          50,
			MaxSuggestions:     100,
			HashAlgorithm:      "sha256",
			UseCatalog:         true,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
	}
}
