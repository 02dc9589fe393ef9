package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/mattjoyce/catalogd/internal/api"
	"github.com/mattjoyce/catalogd/internal/auth"
	"github.com/mattjoyce/catalogd/internal/catalog"
	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/events"
	"github.com/mattjoyce/catalogd/internal/janitor"
	"github.com/mattjoyce/catalogd/internal/lock"
	"github.com/mattjoyce/catalogd/internal/log"
	"github.com/mattjoyce/catalogd/internal/scan"
	"github.com/mattjoyce/catalogd/internal/scheduler"
	"github.com/mattjoyce/catalogd/internal/storage"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "scan":
		return runScanNoun(args)
	case "janitor":
		return runJanitorNoun(args)
	case "config":
		return runConfigNoun(args)
	case "start":
		return runStart(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: catalogd version [--json]")
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		return printJSON(info)
	}

	fmt.Printf("catalogd %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`catalogd - file catalog crawler and storage janitor

Usage:
  catalogd <noun> <action> [flags]

System Commands:
  system start          Run the service (API, scheduler) in the foreground

Scan Commands:
  scan run              Crawl roots into the catalog and wait for the result
  scan list             Show recent scans
  scan status <id>      Show one scan
  scan watch            Live scan monitor (needs a running service)

Janitor Commands:
  janitor policies      List cleanup policies
  janitor analyze <dir> Find duplicate files under a directory
  janitor suggest <dir> Propose cleanup actions
  janitor execute <f>.. Delete files (dry run unless --apply)

Config Commands:
  config check          Validate configuration

General:
  version               Show version information
  help                  Show this help message

Common flags: --config <file>, --db <sqlite path>, --json.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: catalogd system start [--config PATH] [--db PATH]")
		return 1
	}
	switch args[0] {
	case "start":
		return runStart(args[1:])
	case "help", "--help", "-h":
		fmt.Println("Usage: catalogd system start [--config PATH] [--db PATH]")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: catalogd config check [--config PATH] [--json]")
		return 1
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "help", "--help", "-h":
		fmt.Println("Usage: catalogd config check [--config PATH] [--json]")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

type configCheckResult struct {
	Valid     bool   `json:"valid"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
	StatePath string `json:"state_path,omitempty"`
	Schedules int    `json:"schedules"`
	API       bool   `json:"api_enabled"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path := *configPath
	if path == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return reportConfigCheck(configCheckResult{Error: err.Error()}, *jsonOut)
		}
		path = discovered
	}

	cfg, err := config.Load(path)
	if err != nil {
		return reportConfigCheck(configCheckResult{Path: path, Error: err.Error()}, *jsonOut)
	}
	return reportConfigCheck(configCheckResult{
		Valid:     true,
		Path:      path,
		StatePath: cfg.State.Path,
		Schedules: len(cfg.Schedules),
		API:       cfg.API.Enabled,
	}, *jsonOut)
}

func reportConfigCheck(res configCheckResult, jsonOut bool) int {
	code := 0
	if !res.Valid {
		code = 1
	}
	if jsonOut {
		if printJSON(res) != 0 {
			return 1
		}
		return code
	}
	if !res.Valid {
		fmt.Fprintf(os.Stderr, "Configuration check FAILED: %s\n", res.Error)
		return code
	}
	fmt.Printf("Configuration OK: %s\n", res.Path)
	fmt.Printf("  state.path: %s\n", res.StatePath)
	fmt.Printf("  schedules:  %d\n", res.Schedules)
	fmt.Printf("  api:        %t\n", res.API)
	return code
}

// --- SERVICE ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dbPath := fs.String("db", "", "Override state.path")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *dbPath != "" {
		cfg.State.Path = *dbPath
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("catalogd starting", "version", version, "config", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStack(ctx, cfg, log.Get())
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer st.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 2)

	sched := scheduler.New(cfg, st.scans, st.hub, log.Get())
	if len(cfg.Schedules) > 0 {
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			return 1
		}
		defer sched.Stop()
	}

	if cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
		}
		apiServer := api.New(api.Config{
			Listen:  cfg.API.Listen,
			APIKey:  cfg.API.Auth.APIKey,
			Tokens:  tokens,
			Scanner: cfg.Scanner,
		}, st.scans, st.janitor, st.catalog, st.hub, log.Get())
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	} else if len(cfg.Schedules) == 0 {
		logger.Warn("neither api nor schedules are configured; nothing will trigger scans")
	}

	logger.Info("catalogd running (press Ctrl+C to stop)")

	code := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		code = 1
	}
	cancel()

	logger.Info("catalogd stopping", "live_scans", len(st.scans.LiveIDs()))
	return code
}

// stack is the wired set of components sharing one catalog database.
type stack struct {
	lock    *lock.PIDLock
	db      *sql.DB
	catalog *catalog.Store
	jobs    *scan.JobStore
	hub     *events.Hub
	scans   *scan.Manager
	janitor *janitor.Janitor
	logger  *slog.Logger
}

// openStack takes the database lock, opens the catalog and marks scans
// interrupted by a previous process as stopped.
func openStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	st := &stack{hub: events.NewHub(256), logger: logger}

	if cfg.State.Path != ":memory:" {
		l, err := lock.Acquire(lock.PathFor(cfg.State.Path))
		if err != nil {
			return nil, err
		}
		st.lock = l
	}

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		_ = st.lock.Release()
		return nil, fmt.Errorf("open database: %w", err)
	}
	st.db = db

	st.jobs = scan.NewJobStore(db)
	recovered, err := st.jobs.RecoverOrphans(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("recover interrupted scans: %w", err)
	}
	if recovered > 0 {
		logger.Warn("marked scans interrupted by restart as stopped", "count", recovered)
	}

	root := osfs.New("/")
	st.catalog = catalog.NewStore(db)
	st.scans = scan.NewManager(root, st.catalog, st.jobs, st.hub, cfg.Scanner, logger)
	st.janitor, err = janitor.New(root, cfg.Janitor, st.catalog, st.hub, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("janitor: %w", err)
	}
	return st, nil
}

// Close stops live scans, waiting for their final state to be persisted,
// then releases the database.
func (s *stack) Close() {
	if s.scans != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.scans.Shutdown(ctx); err != nil {
			s.logger.Error("scan shutdown incomplete", "error", err)
		}
		cancel()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = s.lock.Release()
}

// --- HELPERS ---

// loadConfigOrDefaults loads the named or discovered config, falling back to
// defaults when no file is named and none is found.
func loadConfigOrDefaults(path, dbPath string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		if discovered, err := config.DiscoverConfigPath(); err == nil {
			path = discovered
		}
	}
	if path == "" {
		cfg = config.Defaults()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbPath != "" {
		cfg.State.Path = dbPath
	}
	return cfg, nil
}

// parseArgs parses flags that may appear before or after positional args.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// stringList is a repeatable, comma-splitting flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}
