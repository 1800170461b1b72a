package cli

import (
	"errors"
	"fmt"

	"github.com/pluginhub/pluginhub/internal/app"
	"github.com/pluginhub/pluginhub/internal/database"
	"github.com/pluginhub/pluginhub/internal/plugins"
	"github.com/spf13/cobra"
)

var errNoCatalog = errors.New("catalog.dsn is not configured")

func newCatalogCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the postgres plugin catalog",
	}
	cmd.AddCommand(newCatalogMigrateCommand(s))
	cmd.AddCommand(newCatalogPublishCommand(s))
	return cmd
}

func newCatalogMigrateCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the catalog schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.cfg.Catalog.DSN == "" {
				return errNoCatalog
			}
			return app.MigrateCatalog(cmd.Context(), &s.cfg.Catalog, s.logger)
		},
	}
}

func newCatalogPublishCommand(s *state) *cobra.Command {
	var packageURI, manifestURI string

	cmd := &cobra.Command{
		Use:   "publish <manifest>",
		Short: "Publish a validated manifest into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.cfg.Catalog.DSN == "" {
				return errNoCatalog
			}

			m, err := plugins.LoadManifest(args[0])
			if err != nil {
				return err
			}

			pool, err := database.Open(cmd.Context(), &s.cfg.Catalog)
			if err != nil {
				return fmt.Errorf("catalog connection failed: %w", err)
			}
			defer pool.Close()

			catalog := database.NewCatalog(database.New(pool), plugins.NewManifestValidator(s.logger), s.logger)
			if err := catalog.Publish(cmd.Context(), m, packageURI, manifestURI); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published %s %s\n", m.Identity.ID, m.Identity.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&packageURI, "package-uri", "", "where the plugin package can be downloaded")
	cmd.Flags().StringVar(&manifestURI, "manifest-uri", "", "where the manifest is published (defaults to none)")
	return cmd
}
