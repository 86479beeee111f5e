package cli

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/dshills/buildscan/internal/build"
)

// NewPatternsCommand creates the patterns command.
func NewPatternsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Print the effective classification rules",
		Long: `Print the built-in classification and location rules, followed by the
project patterns from the configuration, as TOML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig(cmd.Context())
			rules := build.NewHandler(cfg.Handler()).Rules()

			data, err := toml.Marshal(rules)
			if err != nil {
				return fmt.Errorf("encoding rules: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
