package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal valid config keeps defaults",
			yaml: `
state:
  path: /var/lib/catalogd/catalog.db
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/lib/catalogd/catalog.db", cfg.State.Path)
				assert.Equal(t, 1000, cfg.Scanner.BatchSize)
				assert.Equal(t, 5000, cfg.Scanner.ProgressEvery)
				assert.True(t, cfg.Scanner.ReuseHashes)
				assert.Equal(t, 7*24*time.Hour, cfg.Janitor.TempAge)
				assert.Equal(t, "sha256", cfg.Janitor.HashAlgorithm)
				assert.Contains(t, cfg.Janitor.TempExtensions, "tmp")
			},
		},
		{
			name: "scanner and janitor overrides",
			yaml: `
service:
  log_level: DEBUG
  log_format: text
scanner:
  roots: [/mnt/nas/photos]
  include_ext: [".JPG", "png", "jpg"]
  batch_size: 250
  compute_hashes: true
janitor:
  temp_age: 48h
  hash_algorithm: blake3
  temp_extensions: [tmp]
schedules:
  - name: nightly
    roots: [/mnt/nas]
    every: daily
    jitter: 10m
`,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Service.LogLevel)
				assert.Equal(t, "text", cfg.Service.LogFormat)
				assert.Equal(t, []string{"jpg", "png"}, cfg.Scanner.IncludeExt)
				assert.Equal(t, 250, cfg.Scanner.BatchSize)
				assert.True(t, cfg.Scanner.ComputeHashes)
				assert.Equal(t, 48*time.Hour, cfg.Janitor.TempAge)
				assert.Equal(t, "blake3", cfg.Janitor.HashAlgorithm)
				assert.Equal(t, []string{"tmp"}, cfg.Janitor.TempExtensions)
				require.Len(t, cfg.Schedules, 1)
				assert.Equal(t, 10*time.Minute, cfg.Schedules[0].Jitter)
			},
		},
		{
			name: "env interpolation for api key",
			yaml: `
api:
  enabled: true
  listen: 127.0.0.1:9000
  auth:
    api_key: ${CATALOGD_TEST_KEY}
`,
			env: map[string]string{"CATALOGD_TEST_KEY": "s3cret"},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "s3cret", cfg.API.Auth.APIKey)
			},
		},
		{
			name: "unresolved env var",
			yaml: `
api:
  enabled: true
  auth:
    api_key: ${CATALOGD_DEFINITELY_UNSET}
`,
			wantErr: "CATALOGD_DEFINITELY_UNSET",
		},
		{
			name: "relative scan root rejected",
			yaml: `
scanner:
  roots: [relative/dir]
`,
			wantErr: "scanner.roots[0] must be an absolute path",
		},
		{
			name: "bad batch size",
			yaml: `
scanner:
  batch_size: 0
`,
			wantErr: "scanner.batch_size must be positive",
		},
		{
			name: "unsupported janitor algorithm",
			yaml: `
janitor:
  hash_algorithm: md5
`,
			wantErr: "janitor.hash_algorithm",
		},
		{
			name: "schedule without roots",
			yaml: `
schedules:
  - name: broken
    every: 1h
`,
			wantErr: "roots must not be empty",
		},
		{
			name: "api enabled without credentials",
			yaml: `
api:
  enabled: true
`,
			wantErr: "requires api_key or tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadResolvesRelativeStatePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state:\n  path: data/catalog.db\n"), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "catalog.db"), cfg.State.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadRejectsBadScheduleInterval(t *testing.T) {
	_, err := Parse([]byte("schedules:\n  - name: x\n    roots: [/srv]\n    every: fortnightly\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule interval")
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		every   string
		want    time.Duration
		wantErr bool
	}{
		{every: "5m", want: 5 * time.Minute},
		{every: "hourly", want: time.Hour},
		{every: "Daily", want: 24 * time.Hour},
		{every: "weekly", want: 7 * 24 * time.Hour},
		{every: "3d", want: 72 * time.Hour},
		{every: "2w", want: 14 * 24 * time.Hour},
		{every: "0d", wantErr: true},
		{every: "-5m", wantErr: true},
		{every: "foo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.every, func(t *testing.T) {
			got, err := ParseInterval(tt.every)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeExtensions(t *testing.T) {
	got := NormalizeExtensions([]string{" .MKV", "mkv", "", "Jpg", "."})
	assert.Equal(t, []string{"mkv", "jpg"}, got)
}

func TestDiscoverConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
	t.Setenv("CATALOGD_CONFIG", path)

	got, err := DiscoverConfigPath()
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
