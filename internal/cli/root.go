// Package cli provides the buildscan command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/buildscan/internal/config"
	"github.com/dshills/buildscan/internal/config/loader"
	"github.com/dshills/buildscan/internal/logging"
)

// Version information (set at build time).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// configKey stores the loaded configuration in the command context.
type configKey struct{}

// flagPaths maps persistent and command flags to configuration keys. A
// flag overrides its key only when set on the command line.
var flagPaths = map[string]string{
	"log-level":    "logging.level",
	"log-json":     "logging.json",
	"dir":          "build.directory",
	"command":      "build.command",
	"config-type":  "build.configType",
	"timeout":      "build.timeout",
	"kill":         "build.killOnTimeout",
	"encoding":     "build.encoding",
	"launchers":    "build.useLaunchers",
	"launch-dir":   "build.launchDir",
	"log-file":     "build.logFile",
	"max-errors":   "scrape.maxErrors",
	"max-warnings": "scrape.maxWarnings",
	"source-dir":   "paths.sourceDir",
	"build-dir":    "paths.buildDir",
	"report":       "report.path",
	"build-name":   "report.buildName",
	"snippets":     "report.snippetsDir",
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "buildscan",
		Short: "Run a build and report its errors and warnings",
		Long: `buildscan runs a build command, classifies its output line by line
against a table of compiler and linker patterns, and writes the errors and
warnings it found, with surrounding context, as a Build report.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}

			cfg, err := config.Load(config.Options{
				File:      cfgFile,
				Overrides: overrides(cmd),
			})
			if err != nil {
				return err
			}

			logging.Init(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)
			if cfgFile != "" {
				slog.Debug("using config file", "path", cfgFile)
			}
			for _, key := range cfg.Unknown {
				slog.Warn("unknown configuration key", "key", key)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./buildscan.toml or ./buildscan.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().StringP("dir", "C", "", "build directory")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewScanCommand())
	rootCmd.AddCommand(NewPatternsCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the configuration from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	cfg, err := config.FromMap(config.Defaults())
	if err != nil {
		// The defaults are static, so this only fails on a broken build.
		panic(err)
	}
	return cfg
}

// overrides builds the flag layer from the flags set on the command line.
func overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		path, ok := flagPaths[f.Name]
		if !ok {
			return
		}
		switch f.Value.Type() {
		case "bool":
			b, _ := cmd.Flags().GetBool(f.Name)
			loader.SetByPath(out, path, b)
		case "int":
			n, _ := cmd.Flags().GetInt(f.Name)
			loader.SetByPath(out, path, int64(n))
		default:
			loader.SetByPath(out, path, f.Value.String())
		}
	})
	return out
}
