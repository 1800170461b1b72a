// Package cli implements the pluginhub command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/pluginhub/pluginhub/internal/config"
	"github.com/spf13/cobra"
)

var Version = "dev" // Overridden by ldflags

const (
	FlagConfig   = "config"
	FlagLogLevel = "log-level"
	FlagOutput   = "output"
)

// state is shared by every subcommand once the root pre-run has loaded it
type state struct {
	configPath string
	logLevel   string
	output     string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the pluginhub command tree
func NewRootCommand() *cobra.Command {
	s := &state{}

	rootCmd := &cobra.Command{
		Use:   "pluginhub",
		Short: "Discover plugins across file shares, pluginhub servers and catalogs",
		Long: `pluginhub aggregates plugin discovery over a set of plugin sources.

Sources are URIs: file:// shares, http(s):// pluginhub servers and
postgres:// catalogs. Each source is bound to every adapter that supports it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.configPath, FlagConfig, "", "config file path (defaults plus PLUGINHUB_ environment when empty)")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, FlagLogLevel, "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&s.output, FlagOutput, "o", outputTable, "output format (table, json, yaml)")

	rootCmd.AddCommand(newServeCommand(s))
	rootCmd.AddCommand(newListCommand(s))
	rootCmd.AddCommand(newVersionsCommand(s))
	rootCmd.AddCommand(newValidateCommand(s))
	rootCmd.AddCommand(newCatalogCommand(s))
	rootCmd.AddCommand(newConfigCommand(s))
	rootCmd.AddCommand(newVaultCommand(s))

	return rootCmd
}

func (s *state) load() error {
	if !isOutputFormat(s.output) {
		return fmt.Errorf("unknown output format %q", s.output)
	}

	cfg, err := config.LoadOrDefault(s.configPath)
	if err != nil {
		return err
	}
	if s.logLevel != "" {
		cfg.Logging.Level = s.logLevel
		if !cfg.Logging.IsLogLevelValid() {
			return fmt.Errorf("invalid log level %q", s.logLevel)
		}
	}

	// Command output owns stdout
	cfg.Logging.Output = "stderr"

	s.cfg = cfg
	s.logger = config.InitLogger(cfg.Logging)
	return nil
}
