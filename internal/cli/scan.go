package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/buildscan/internal/build"
)

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <logfile>",
		Short: "Classify a saved build log",
		Long: `Classify a saved build log as if it were the output of a build, and
write the Build report. Use "-" to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig(cmd.Context())
			name := args[0]

			var r io.Reader = cmd.InOrStdin()
			if name != "-" {
				f, err := os.Open(name)
				if err != nil {
					return fmt.Errorf("open build log: %w", err)
				}
				defer f.Close()
				r = f
			}

			res, err := build.NewHandler(cfg.Handler(), build.WithLogger(slog.Default())).Scan(cmd.Context(), r, name)
			if err != nil {
				return err
			}
			return writeResult(cmd, cfg, res)
		},
	}

	cmd.Flags().String("encoding", "", "log encoding (utf-8, none, or an IANA name)")
	addReportFlags(cmd)
	return cmd
}
