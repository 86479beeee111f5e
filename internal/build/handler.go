// Package build runs a build command and turns its output into a report.
//
// A Handler runs one build at a time. It selects the reporting mode once,
// starts the command through the runner, feeds both output streams into a
// scraper, and hands the run state to the matching aggregator. The result
// carries everything needed to write the Build report element.
//
//	h := build.NewHandler(cfg, build.WithLogger(logger))
//	res, err := h.Run(ctx)
//	if err != nil {
//		return err
//	}
//	report.Write(os.Stdout, res.Document)
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/buildscan/internal/build/classify"
	"github.com/dshills/buildscan/internal/build/launch"
	"github.com/dshills/buildscan/internal/build/report"
	"github.com/dshills/buildscan/internal/build/runner"
	"github.com/dshills/buildscan/internal/build/scrape"
)

// Mode selects where reported problems come from.
type Mode int

const (
	// ModeLogScrape classifies the build output line by line.
	ModeLogScrape Mode = iota

	// ModeLauncher collects fragments written by launchers wrapping each
	// compile and link step.
	ModeLauncher
)

func (m Mode) String() string {
	switch m {
	case ModeLogScrape:
		return "log-scrape"
	case ModeLauncher:
		return "launcher"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Patterns are project rules added after the built-in tables.
type Patterns struct {
	ErrorMatch       []string
	ErrorException   []string
	WarningMatch     []string
	WarningException []string
}

// Config describes one build.
type Config struct {
	// Command is the build command line. ${CONFIGURATION_TYPE} is replaced
	// by ConfigurationType.
	Command           string
	ConfigurationType string

	// Dir is the working directory of the build.
	Dir string

	// Timeout bounds the run. Zero means no limit.
	Timeout time.Duration

	// KillOnTimeout kills the build process group when the timeout fires.
	KillOnTimeout bool

	// Encoding names the encoding of the build output.
	Encoding string

	// UseLaunchers selects ModeLauncher. LaunchDir is the fragment
	// directory; empty means DefaultLaunchDir(Dir).
	UseLaunchers bool
	LaunchDir    string

	// LogFile receives a copy of the raw output when set.
	LogFile string

	Scrape   scrape.Options
	Patterns Patterns

	// SourceDir and BuildDir are shortened in reported text.
	SourceDir string
	BuildDir  string

	// SnippetsDir holds instrumentation snippets, if any.
	SnippetsDir string
}

// Mode returns the reporting mode for the configuration.
func (c *Config) Mode() Mode {
	if c.UseLaunchers {
		return ModeLauncher
	}
	return ModeLogScrape
}

// Result is the outcome of one build run.
type Result struct {
	RunID string
	Mode  Mode
	Args  []string
	Exit  runner.Exit

	Selection report.Selection
	Document  *report.Document

	// Summary holds the closing console lines.
	Summary []string
}

// Handler runs builds.
type Handler struct {
	cfg      Config
	logger   *slog.Logger
	progress io.Writer
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithProgress draws the output progress indicator on w.
func WithProgress(w io.Writer) Option {
	return func(h *Handler) {
		h.progress = w
	}
}

// NewHandler creates a Handler for cfg.
func NewHandler(cfg Config, opts ...Option) *Handler {
	h := &Handler{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.cfg.LaunchDir == "" {
		h.cfg.LaunchDir = DefaultLaunchDir(h.cfg.Dir)
	}
	return h
}

// DefaultLaunchDir returns the fragment directory used for a build in dir.
func DefaultLaunchDir(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "Testing", "Build")
}

// Rules returns the built-in rules with the project patterns appended.
func (h *Handler) Rules() classify.RuleSet {
	rs := classify.Builtin()
	p := h.cfg.Patterns
	rs.Append(classify.Error, p.ErrorMatch, p.ErrorException)
	rs.Append(classify.Warning, p.WarningMatch, p.WarningException)
	return rs
}

// Command returns the build command line after variable substitution.
func (h *Handler) Command() string {
	return expandVariables(h.cfg.Command, map[string]string{
		ConfigurationTypeVar: h.configurationType(),
	})
}

func (h *Handler) configurationType() string {
	if h.cfg.ConfigurationType != "" {
		return h.cfg.ConfigurationType
	}
	return DefaultConfigurationType
}

// Run executes the build and aggregates what it reported. Failures of the
// build itself are part of the result; an error is returned only when the
// run could not be set up.
func (h *Handler) Run(ctx context.Context) (*Result, error) {
	command := h.Command()
	args, err := splitArguments(command)
	if err != nil {
		return nil, err
	}

	if _, err := runner.LookupEncoding(h.cfg.Encoding); err != nil {
		return nil, fmt.Errorf("build output encoding %q: %w", h.cfg.Encoding, err)
	}

	res := &Result{
		RunID: uuid.NewString(),
		Mode:  h.cfg.Mode(),
		Args:  args,
	}
	logger := h.logger.With("run", res.RunID)
	rules := h.Rules()

	opts := runner.Options{
		Args:     args,
		Dir:      h.cfg.Dir,
		Timeout:  h.cfg.Timeout,
		Encoding: h.cfg.Encoding,
		Logger:   logger,
	}

	var classifier classify.LineClassifier
	if res.Mode == ModeLauncher {
		err := launch.Prepare(launch.Setup{
			Dir:              h.cfg.LaunchDir,
			RunID:            res.RunID,
			SourceDir:        h.cfg.SourceDir,
			WarningMatch:     h.cfg.Patterns.WarningMatch,
			WarningException: h.cfg.Patterns.WarningException,
		})
		if err != nil {
			return nil, fmt.Errorf("prepare launcher directory: %w", err)
		}
		opts.Env = map[string]string{launch.EnvVar: h.cfg.LaunchDir}
		classifier = classify.Passthrough{}
	} else {
		opts.Unset = []string{launch.EnvVar}
		classifier = classify.New(rules, classify.WithLogger(logger))
	}

	var progress *scrape.Progress
	if h.progress != nil {
		progress = scrape.NewProgress(h.progress)
		progress.Begin(res.Mode == ModeLauncher)
	}

	var tees []io.Writer
	if h.cfg.LogFile != "" {
		f, err := h.openLog()
		if err != nil {
			logger.Warn("cannot open build log; continuing without it", "path", h.cfg.LogFile, "error", err)
		} else {
			defer f.Close()
			tees = append(tees, f)
		}
	}
	var captured bytes.Buffer
	if res.Mode == ModeLauncher {
		tees = append(tees, &captured)
	}

	sopts := []scrape.Option{scrape.WithProgress(progress), scrape.WithLogger(logger)}
	if len(tees) > 0 {
		sopts = append(sopts, scrape.WithTee(io.MultiWriter(tees...)))
	}
	scraper := scrape.New(classifier, h.cfg.Scrape, sopts...)

	var watcher *launch.Watcher
	if res.Mode == ModeLauncher && progress != nil {
		watcher, err = launch.Watch(h.cfg.LaunchDir, progress.Mark, logger)
		if err != nil {
			logger.Debug("launcher directory not watched", "error", err)
			watcher = nil
		}
	}

	logger.Info("build starting", "mode", res.Mode.String(), "command", command, "dir", h.cfg.Dir)

	start := time.Now()
	res.Exit = h.execute(ctx, opts, scraper, logger)
	end := time.Now()

	progress.Finish()
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Debug("close launcher watcher", "error", err)
		}
	}

	h.recordExit(res, scraper, captured.String(), logger)

	res.Selection = h.aggregator(rules, logger).Aggregate(scraper.State())
	res.Summary = report.SummaryLines(res.Selection, h.cfg.Scrape.MaxErrors, h.cfg.Scrape.MaxWarnings)
	res.Document = &report.Document{
		Command:   command,
		StartTime: start,
		EndTime:   end,
		Selection: res.Selection,
		Instrumentation: report.Snippets{
			Dir:    h.cfg.SnippetsDir,
			Logger: logger,
		}.Collect(),
	}

	logger.Info("build finished",
		"exit", res.Exit.String(),
		"errors", res.Selection.ErrorsFound,
		"warnings", res.Selection.WarningsFound,
		"lines", scraper.State().Lines,
		"bytes", scraper.State().OutputBytes,
	)
	return res, nil
}

func (h *Handler) openLog() (*os.File, error) {
	if dir := filepath.Dir(h.cfg.LogFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(h.cfg.LogFile)
}

// execute starts and drains the build. A spawn failure becomes an error
// event at the top of the log.
func (h *Handler) execute(ctx context.Context, opts runner.Options, scraper *scrape.Scraper, logger *slog.Logger) runner.Exit {
	handle, err := runner.Start(ctx, opts)
	if err != nil {
		var spawnErr *runner.SpawnError
		reason := err.Error()
		if errors.As(err, &spawnErr) {
			reason = spawnErr.Reason
		}
		logger.Error("build command could not be started", "error", err)
		scraper.AddEvent(classify.Error, "*** ERROR executing: "+reason)
		return runner.Exit{Kind: runner.SpawnFailure, Reason: reason}
	}

	exit := handle.Drain(scraper.Stream(), scraper.Stream())
	if exit.Kind == runner.TimedOut && h.cfg.KillOnTimeout {
		logger.Warn("killing timed out build", "pid", handle.PID())
		if err := handle.Kill(); err != nil {
			logger.Warn("kill build process group", "error", err)
		}
		select {
		case <-handle.Done():
		case <-ctx.Done():
		}
	}
	return exit
}

// recordExit reports an abnormal exit the way the current mode reports
// problems.
func (h *Handler) recordExit(res *Result, scraper *scrape.Scraper, output string, logger *slog.Logger) {
	switch res.Exit.Kind {
	case runner.Normal:
		if res.Exit.Code == 0 {
			return
		}
		argv0 := ""
		if len(res.Args) > 0 {
			argv0 = res.Args[0]
		}
		if res.Mode == ModeLogScrape {
			scraper.AddEvent(classify.Warning, "*** WARNING non-zero return value in build from: "+argv0)
			return
		}
		if launch.HasReports(h.cfg.LaunchDir) {
			return
		}
		path, err := launch.WriteExitFragment(h.cfg.LaunchDir, launch.ExitReport{
			Args:     res.Args,
			Dir:      h.cfg.Dir,
			ExitCode: res.Exit.Code,
			Output:   output,
		})
		if err != nil {
			logger.Warn("cannot write exit fragment", "error", err)
			return
		}
		logger.Debug("wrote exit fragment", "path", path)

	case runner.Signaled:
		logger.Warn("build terminated by signal", "exit", res.Exit.String())

	case runner.TimedOut:
		logger.Warn("build timed out; reporting partial output", "timeout", h.cfg.Timeout)
	}
}

func (h *Handler) aggregator(rules classify.RuleSet, logger *slog.Logger) report.Aggregator {
	if h.cfg.Mode() == ModeLauncher {
		return report.Launcher{
			Dir:         h.cfg.LaunchDir,
			MaxErrors:   h.cfg.Scrape.MaxErrors,
			MaxWarnings: h.cfg.Scrape.MaxWarnings,
			Logger:      logger,
		}
	}
	return h.logScrape(rules, logger)
}

func (h *Handler) logScrape(rules classify.RuleSet, logger *slog.Logger) report.LogScrape {
	return report.LogScrape{
		MaxErrors:   h.cfg.Scrape.MaxErrors,
		MaxWarnings: h.cfg.Scrape.MaxWarnings,
		Locator:     classify.NewLocator(rules.Location, logger),
		Simplifier:  classify.NewPathSimplifier(h.cfg.SourceDir, h.cfg.BuildDir),
	}
}
