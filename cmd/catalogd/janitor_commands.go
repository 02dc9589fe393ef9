package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/mattjoyce/catalogd/internal/catalog"
	"github.com/mattjoyce/catalogd/internal/config"
	"github.com/mattjoyce/catalogd/internal/janitor"
	"github.com/mattjoyce/catalogd/internal/log"
	"github.com/mattjoyce/catalogd/internal/storage"
)

func runJanitorNoun(args []string) int {
	if len(args) < 1 {
		printJanitorNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printJanitorNounHelp(os.Stdout)
		return 0
	}

	action, actionArgs := args[0], args[1:]
	switch action {
	case "policies":
		return runJanitorPolicies(actionArgs)
	case "analyze":
		return runJanitorAnalyze(actionArgs)
	case "suggest":
		return runJanitorSuggest(actionArgs)
	case "execute":
		return runJanitorExecute(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown janitor action: %s\n", action)
		return 1
	}
}

func printJanitorNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: catalogd janitor <action> [flags]")
	fmt.Fprintln(w, "Actions: policies, analyze, suggest, execute")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  janitor policies [--json]")
	fmt.Fprintln(w, "  janitor analyze <dir> [--json]")
	fmt.Fprintln(w, "  janitor suggest <dir> [--policy ID]... [--json]")
	fmt.Fprintln(w, "  janitor execute <file>... [--apply] [--json]")
}

type janitorFlags struct {
	configPath *string
	dbPath     *string
	jsonOut    *bool
}

func addJanitorFlags(fs *flag.FlagSet) janitorFlags {
	return janitorFlags{
		configPath: fs.String("config", "", "Path to configuration file or directory"),
		dbPath:     fs.String("db", "", "Override state.path (catalog digests)"),
		jsonOut:    fs.Bool("json", false, "Output as JSON"),
	}
}

// newJanitor builds a janitor over the local filesystem. When use_catalog is
// on and the catalog exists, stored digests are reused.
func newJanitor(ctx context.Context, f janitorFlags) (*janitor.Janitor, func(), error) {
	cfg, err := loadConfigOrDefaults(*f.configPath, *f.dbPath)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var digests janitor.DigestSource
	if cfg.Janitor.UseCatalog && catalogExists(cfg) {
		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			return nil, nil, err
		}
		digests = catalog.NewStore(db)
		closeFn = func() { _ = db.Close() }
	}

	j, err := janitor.New(osfs.New("/"), cfg.Janitor, digests, nil, log.Discard())
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return j, closeFn, nil
}

func catalogExists(cfg *config.Config) bool {
	_, err := os.Stat(cfg.State.Path)
	return err == nil
}

// janitorContext is cancelled on SIGINT/SIGTERM so long walks can be
// interrupted.
func janitorContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runJanitorPolicies(args []string) int {
	fs := flag.NewFlagSet("policies", flag.ContinueOnError)
	f := addJanitorFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	j, closeFn, err := newJanitor(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	policies := j.Policies()
	if *f.jsonOut {
		return printJSON(map[string]any{"policies": policies})
	}
	for _, p := range policies {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-20s %-9s %s\n", p.ID, state, p.Description)
	}
	return 0
}

func absPath(p string) (string, error) {
	if p == "" {
		return "", janitor.ErrPathRequired
	}
	return filepath.Abs(p)
}

func runJanitorAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	f := addJanitorFlags(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: catalogd janitor analyze <dir> [--json]")
		return 1
	}
	path, err := absPath(positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := janitorContext()
	defer cancel()
	j, closeFn, err := newJanitor(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	res, err := j.Analyze(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *f.jsonOut {
		return printJSON(res)
	}

	fmt.Printf("Path:          %s\n", res.Path)
	fmt.Printf("Files:         %s (%s hashed with %s)\n", humanize.Comma(int64(res.TotalFiles)), humanize.Comma(int64(res.ScannedFiles)), res.HashAlgorithm)
	fmt.Printf("Total size:    %s\n", humanize.IBytes(uint64(res.TotalSize)))
	fmt.Printf("Duplicates:    %s\n", humanize.Comma(int64(res.DuplicatesCount)))
	fmt.Printf("Wasted space:  %s\n", humanize.IBytes(uint64(res.WastedSpace)))
	if res.Truncated {
		fmt.Println("Note: file limit reached, results are partial.")
	}
	for _, g := range res.DuplicateGroups {
		fmt.Printf("\n%s  %d copies of %s (%s wasted)\n", shortDigest(g.Hash), g.Count, humanize.IBytes(uint64(g.Size)), humanize.IBytes(uint64(g.Wasted)))
		for _, file := range g.Files {
			fmt.Printf("  %s\n", file)
		}
	}
	return 0
}

func runJanitorSuggest(args []string) int {
	var policies stringList
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	f := addJanitorFlags(fs)
	fs.Var(&policies, "policy", "Policy id to apply (repeatable; default: enabled policies)")
	positional, err := parseArgs(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: catalogd janitor suggest <dir> [--policy ID]... [--json]")
		return 1
	}
	path, err := absPath(positional[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := janitorContext()
	defer cancel()
	j, closeFn, err := newJanitor(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	res, err := j.Suggest(ctx, path, policies)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *f.jsonOut {
		return printJSON(res)
	}

	if res.SuggestionsCount == 0 {
		fmt.Println("Nothing to clean up.")
		return 0
	}
	for _, s := range res.Suggestions {
		fmt.Printf("[%s] %s %s\n", s.Policy, s.Action, s.Reason)
		for _, file := range s.Files {
			fmt.Printf("  %s\n", file)
		}
	}
	fmt.Printf("\n%d suggestions, %s reclaimable\n", res.SuggestionsCount, humanize.IBytes(uint64(res.TotalSpaceSaved)))
	if res.Truncated {
		fmt.Println("Note: results are partial.")
	}
	return 0
}

func runJanitorExecute(args []string) int {
	fs := flag.NewFlagSet("execute", flag.ContinueOnError)
	f := addJanitorFlags(fs)
	apply := fs.Bool("apply", false, "Actually delete (default is a dry run)")
	files, err := parseArgs(fs, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: catalogd janitor execute <file>... [--apply] [--json]")
		return 1
	}
	for i, file := range files {
		if abs, err := filepath.Abs(file); err == nil {
			files[i] = abs
		}
	}

	ctx, cancel := janitorContext()
	defer cancel()
	j, closeFn, err := newJanitor(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeFn()

	res := j.Execute(ctx, files, !*apply)
	if *f.jsonOut {
		if printJSON(res) != 0 {
			return 1
		}
	} else {
		verb := "Deleted"
		if res.DryRun {
			verb = "Would delete"
		}
		for _, d := range res.Deleted {
			fmt.Printf("%s %s\n", verb, d)
		}
		for _, fail := range res.Failed {
			fmt.Fprintf(os.Stderr, "Failed %s: %s\n", fail.File, fail.Reason)
		}
		fmt.Printf("%s: %d of %d files, %s\n", res.Warning, len(res.Deleted), res.TotalFiles, humanize.IBytes(uint64(res.SpaceFreed)))
	}
	if len(res.Failed) > 0 {
		return 1
	}
	return 0
}

func shortDigest(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
