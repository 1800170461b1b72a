package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/pluginhub/pluginhub/internal/app"
	"github.com/pluginhub/pluginhub/internal/discovery"
	"github.com/pluginhub/pluginhub/internal/plugins"
	"github.com/spf13/cobra"
)

const FlagSource = "source"

func newServeCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pluginhub HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Serve(cmd.Context(), s.cfg, s.logger)
		},
	}
}

func newListCommand(s *state) *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List the latest version of every plugin across the sources",
		Example: `  pluginhub list --source file:///srv/plugins --source https://hub.example.com`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := s.stack(sources)
			if err != nil {
				return err
			}
			defer stack.Close()

			available, err := stack.Manager.GetAvailablePluginsLatest(cmd.Context())
			if err := warnPartial(cmd.ErrOrStderr(), err); err != nil {
				return err
			}
			return renderPlugins(cmd.OutOrStdout(), s.output, available)
		},
	}

	cmd.Flags().StringSliceVar(&sources, FlagSource, nil, "plugin source URI (repeatable, defaults to discovery.sources)")
	return cmd
}

func newVersionsCommand(s *state) *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "versions <plugin-id>",
		Short: "List every version of one plugin, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := s.stack(sources)
			if err != nil {
				return err
			}
			defer stack.Close()

			identity := plugins.NewIdentity(args[0], "")
			available, err := stack.Manager.GetAllVersionsOfPlugin(cmd.Context(), &identity)
			if err := warnPartial(cmd.ErrOrStderr(), err); err != nil {
				return err
			}
			plugins.SortNewestFirst(available)
			return renderPlugins(cmd.OutOrStdout(), s.output, available)
		},
	}

	cmd.Flags().StringSliceVar(&sources, FlagSource, nil, "plugin source URI (repeatable, defaults to discovery.sources)")
	return cmd
}

// stack builds the discovery stack for the flag sources, or the configured
// ones when none were given
func (s *state) stack(raw []string) (*app.Stack, error) {
	if len(raw) == 0 {
		return app.Build(s.cfg, s.logger)
	}
	sources, err := plugins.ParseSources(raw)
	if err != nil {
		return nil, err
	}
	return app.BuildWithSources(s.cfg, sources, s.logger)
}

// warnPartial prints per-source failures and swallows a partial error
func warnPartial(w io.Writer, err error) error {
	var partial *discovery.PartialError
	if !errors.As(err, &partial) {
		return err
	}
	for _, f := range partial.Failures {
		fmt.Fprintf(w, "warning: %s\n", f.Error())
	}
	return nil
}
