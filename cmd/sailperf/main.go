package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"sailperf/internal/config"
	"sailperf/internal/metrics"
	"sailperf/internal/report"
)

// errUsage marks argument errors; the message has already been printed.
var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(a *app, args []string) error
}

var commands = map[string]command{
	"decode":   {"decode instrument logs into a records CSV", runDecode},
	"build":    {"merge, enrich and filter records into the combined dataset", runBuild},
	"polar":    {"aggregate boat speed by wind angle", runPolar},
	"vmg":      {"find the best upwind and downwind angles from a polar CSV", runVMG},
	"run":      {"run every stage from logs to VMG", runPipeline},
	"summary":  {"describe instrument log files", runSummary},
	"simulate": {"write a synthetic instrument log from a scenario", runSimulate},
}

// app carries what every subcommand needs.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	console *report.Console
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sailperf", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to YAML config (optional)")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		usage(fs)
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(fs)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config load failed: %v\n", err)
		return 1
	}

	m := metrics.New(metrics.NewRunID())
	a := &app{
		cfg:     cfg,
		log:     setupLogger(cfg.Log, stderr).With("run_id", m.RunID, "cmd", name),
		metrics: m,
		console: report.NewConsoleWriter(stdout),
		stdout:  stdout,
		stderr:  stderr,
	}

	if err := cmd.run(a, fs.Args()[1:]); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			return 2
		}
		a.log.Error("command failed", "error", err)
		return 1
	}
	if err := m.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Error("metrics", "error", err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "usage: sailperf [-config file] <command> [flags] [args]\n\ncommands:\n")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-9s %s\n", n, commands[n].summary)
	}
	fmt.Fprintf(w, "\nglobal flags:\n")
	fs.PrintDefaults()
}

// setupLogger installs a slog handler writing to w and returns it.
func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// newFlagSet returns a subcommand flag set that reports errors instead of
// exiting.
func (a *app) newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "usage: sailperf %s [flags] %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses flags and requires at least nargs positional arguments.
func (a *app) parse(fs *flag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	if fs.NArg() < nargs {
		fs.Usage()
		return errUsage
	}
	return nil
}
