package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/dshills/buildscan/internal/build"
	"github.com/dshills/buildscan/internal/build/report"
	"github.com/dshills/buildscan/internal/config"
)

// ErrBuildFailed is returned by run --fail when the build reported errors
// or did not exit cleanly.
var ErrBuildFailed = errors.New("build failed")

// ErrNoCommand is returned when no build command is configured.
var ErrNoCommand = errors.New("no build command configured (set build.command or pass --command)")

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var fail bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the build and write its report",
		Long: `Run the configured build command, scrape its output (or collect launcher
fragments with --launchers), and write the Build report to --report or
standard output.`,
		Example: `  buildscan run --command "make -j8"
  buildscan run -C build --command "cmake --build . --config \${CONFIGURATION_TYPE}" --report Build.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig(cmd.Context())
			if cfg.Build.Command == "" {
				return ErrNoCommand
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), unix.SIGINT, unix.SIGTERM)
			defer stop()

			opts := []build.Option{build.WithLogger(slog.Default())}
			if w := progressWriter(cmd.ErrOrStderr()); w != nil {
				opts = append(opts, build.WithProgress(w))
			}

			res, err := build.NewHandler(cfg.Handler(), opts...).Run(ctx)
			if err != nil {
				return err
			}
			if err := writeResult(cmd, cfg, res); err != nil {
				return err
			}

			if fail && (res.Selection.ErrorsFound > 0 || !res.Exit.Success()) {
				return fmt.Errorf("%w: %s", ErrBuildFailed, res.Exit)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("command", "", "build command line")
	f.String("config-type", "", "value of ${CONFIGURATION_TYPE} in the command")
	f.String("timeout", "", "build timeout (seconds or duration)")
	f.Bool("kill", false, "kill the build when the timeout fires")
	f.String("encoding", "", "build output encoding (utf-8, none, or an IANA name)")
	f.Bool("launchers", false, "collect launcher fragments instead of scraping output")
	f.String("launch-dir", "", "launcher fragment directory")
	f.String("log-file", "", "copy raw build output to this file")
	f.String("snippets", "", "instrumentation snippet directory")
	addReportFlags(cmd)
	f.BoolVar(&fail, "fail", false, "exit non-zero when the build reported errors or failed")

	return cmd
}

// addReportFlags registers the flags shared by run and scan.
func addReportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("max-errors", 0, "maximum errors reported")
	f.Int("max-warnings", 0, "maximum warnings reported")
	f.String("source-dir", "", "source tree shortened in reported text")
	f.String("build-dir", "", "build tree shortened in reported text")
	f.StringP("report", "o", "", "report file (default: Build element on stdout)")
	f.String("build-name", "", "build name recorded in the report file")
}

// progressWriter returns w when it is a terminal.
func progressWriter(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return w
}

// writeResult writes the report and prints the summary. With no report
// file the Build element goes to stdout and the summary to stderr.
func writeResult(cmd *cobra.Command, cfg *config.Config, res *build.Result) error {
	summary := cmd.OutOrStdout()

	if cfg.Report.Path == "" {
		if err := report.Write(cmd.OutOrStdout(), res.Document); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		summary = cmd.ErrOrStderr()
	} else {
		site := report.Site{
			Name:      cfg.Report.Site,
			BuildName: cfg.Report.BuildName,
			BuildID:   res.RunID,
			Generator: "buildscan-" + Version,
		}
		if err := report.WriteFile(cfg.Report.Path, site, res.Document); err != nil {
			return err
		}
		sel := res.Selection
		slog.Info("report written",
			"path", cfg.Report.Path,
			"errors", report.FormatCount(sel.ErrorsFound, sel.ErrorsReported),
			"warnings", report.FormatCount(sel.WarningsFound, sel.WarningsReported),
		)
	}

	for _, line := range res.Summary {
		fmt.Fprintln(summary, line)
	}
	return nil
}
