package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/events"
	"github.com/mattjoyce/catalogd/internal/log"
	"github.com/mattjoyce/catalogd/internal/scan"
	"github.com/mattjoyce/catalogd/internal/storage"
	"github.com/mattjoyce/catalogd/internal/tui"
)

func runScanNoun(args []string) int {
	if len(args) < 1 {
		printScanNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printScanNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "run":
		return runScanRun(actionArgs)
	case "list":
		return runScanList(actionArgs)
	case "status":
		return runScanStatus(actionArgs)
	case "watch":
		return runScanWatch(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown scan action: %s\n", action)
		return 1
	}
}

func printScanNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: catalogd scan <action> [flags]")
	fmt.Fprintln(w, "Actions: run, list, status, watch")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  scan run [--root DIR]... [--include EXT]... [--exclude EXT]... [--hash] [--batch-size N] [--json]")
	fmt.Fprintln(w, "  scan list [--limit N] [--json]")
	fmt.Fprintln(w, "  scan status <id> [--json]")
	fmt.Fprintln(w, "  scan watch [--api-url URL] [--api-key KEY]")
}

func runScanRun(args []string) int {
	var roots, include, exclude stringList
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dbPath := fs.String("db", "", "Override state.path")
	fs.Var(&roots, "root", "Directory to crawl (repeatable)")
	fs.Var(&include, "include", "Only catalog these extensions (repeatable)")
	fs.Var(&exclude, "exclude", "Skip these extensions (repeatable)")
	hash := fs.Bool("hash", false, "Compute sha256 digests")
	batchSize := fs.Int("batch-size", 0, "Records per catalog transaction")
	jsonOut := fs.Bool("json", false, "Output the final job as JSON")
	positional, err := parseArgs(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	roots = append(roots, positional...)

	cfg, err := loadConfigOrDefaults(*configPath, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	scanCfg := scan.Config{
		IncludeExt:    include,
		ExcludeExt:    exclude,
		BatchSize:     *batchSize,
		ComputeHashes: *hash || cfg.Scanner.ComputeHashes,
		ReuseHashes:   cfg.Scanner.ReuseHashes,
	}
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid root %q: %v\n", r, err)
			return 1
		}
		scanCfg.Roots = append(scanCfg.Roots, abs)
	}

	ctx := context.Background()
	st, err := openStack(ctx, cfg, log.Discard())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer st.Close()

	progress, unsubscribe := st.hub.Subscribe()
	defer unsubscribe()

	id, err := st.scans.Start(ctx, scanCfg)
	if errors.Is(err, scan.ErrNoRoots) {
		fmt.Fprintln(os.Stderr, "Error: no roots (use --root or scanner.roots)")
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	waitCh := make(chan error, 1)
	go func() { waitCh <- st.scans.Wait(ctx, id) }()

	if !*jsonOut {
		fmt.Fprintf(os.Stderr, "Scan %s started\n", id)
	}
loop:
	for {
		select {
		case <-waitCh:
			break loop
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "Stopping scan...")
			st.scans.Stop(id)
		case ev := <-progress:
			if !*jsonOut && ev.Type == events.ScanProgress {
				printProgress(ev)
			}
		}
	}

	job, err := st.jobs.Get(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *jsonOut {
		if printJSON(job) != 0 {
			return 1
		}
	} else {
		printJobSummary(job)
	}
	if job.Status != scan.StatusComplete {
		return 1
	}
	return 0
}

func printProgress(ev events.Event) {
	var n scan.Notification
	if err := json.Unmarshal(ev.Data, &n); err != nil {
		return
	}
	fmt.Fprintf(os.Stderr, "  %s files, %s upserts, %s errors\n",
		humanize.Comma(n.Counts.FilesSeen),
		humanize.Comma(n.Counts.Upserts),
		humanize.Comma(n.Counts.Errors),
	)
}

func printJobSummary(job *scan.Job) {
	fmt.Printf("Scan %s %s\n", job.ID, job.Status)
	fmt.Printf("  roots:      %s\n", strings.Join(job.Config.Roots, ", "))
	if job.Schedule != "" {
		fmt.Printf("  schedule:   %s\n", job.Schedule)
	}
	fmt.Printf("  files seen: %s\n", humanize.Comma(job.Counts.FilesSeen))
	fmt.Printf("  upserts:    %s in %s batches\n", humanize.Comma(job.Counts.Upserts), humanize.Comma(job.Counts.Batches))
	fmt.Printf("  skipped:    %s\n", humanize.Comma(job.Counts.Skipped))
	fmt.Printf("  hashed:     %s\n", humanize.Comma(job.Counts.Hashed))
	fmt.Printf("  errors:     %s\n", humanize.Comma(job.Counts.Errors))
	if job.FinishedAt != nil {
		fmt.Printf("  duration:   %s\n", job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond))
	}
	if job.LastError != "" {
		fmt.Printf("  last error: %s\n", job.LastError)
	}
}

// openJobStore opens the catalog for reading without taking the lock, so it
// works next to a running service.
func openJobStore(ctx context.Context, configPath, dbPath string) (*scan.JobStore, func(), error) {
	cfg, err := loadConfigOrDefaults(configPath, dbPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, err
	}
	return scan.NewJobStore(db), func() { _ = db.Close() }, nil
}

func runScanList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dbPath := fs.String("db", "", "Override state.path")
	limit := fs.Int("limit", 20, "Number of scans to show")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	jobs, closeFn, err := openJobStore(ctx, *configPath, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	list, err := jobs.List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *jsonOut {
		if list == nil {
			list = []*scan.Job{}
		}
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No scans recorded.")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tFILES\tERRORS\tROOTS")
	for _, j := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID,
			j.Status,
			humanize.Time(j.StartedAt),
			humanize.Comma(j.Counts.FilesSeen),
			humanize.Comma(j.Counts.Errors),
			strings.Join(j.Config.Roots, ","),
		)
	}
	_ = tw.Flush()
	return 0
}

func runScanStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	dbPath := fs.String("db", "", "Override state.path")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	positional, err := parseArgs(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: catalogd scan status <id> [--json]")
		return 1
	}

	ctx := context.Background()
	jobs, closeFn, err := openJobStore(ctx, *configPath, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	job, err := jobs.Get(ctx, positional[0])
	if errors.Is(err, scan.ErrScanNotFound) {
		fmt.Fprintf(os.Stderr, "Scan not found: %s\n", positional[0])
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *jsonOut {
		return printJSON(job)
	}
	printJobSummary(job)
	return 0
}

func runScanWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file; supplies the listen address")
	apiURL := fs.String("api-url", "", "Service API URL")
	apiKey := fs.String("api-key", os.Getenv("CATALOGD_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiURL == "" {
		*apiURL = "http://" + config.Defaults().API.Listen
		if cfg, err := loadConfigOrDefaults(*configPath, ""); err == nil {
			*apiURL = "http://" + cfg.API.Listen
			if *apiKey == "" {
				*apiKey = cfg.API.Auth.APIKey
			}
		}
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or CATALOGD_API_KEY env var.")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(tui.NewMonitor(ctx, *apiURL, *apiKey))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
