package cli

import (
	"github.com/pluginhub/pluginhub/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect pluginhub configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "example",
		Short: "Print an example configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.DumpExampleConfig(cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return encode(cmd.OutOrStdout(), outputYAML, effectiveConfig(s.cfg))
		},
	})

	return cmd
}

// effectiveConfig is cfg with secrets masked
func effectiveConfig(cfg *config.Config) config.Config {
	out := *cfg
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "********"
	}

	out.Auth.AdminPassword = mask(out.Auth.AdminPassword)
	out.Auth.JWTSecret = mask(out.Auth.JWTSecret)
	out.Credentials.Vault.Passphrase = mask(out.Credentials.Vault.Passphrase)
	out.Catalog.DSN = cfg.Catalog.Redacted()

	out.Credentials.Static = make([]config.StaticCredential, len(cfg.Credentials.Static))
	for i, c := range cfg.Credentials.Static {
		c.Password = mask(c.Password)
		c.Token = mask(c.Token)
		out.Credentials.Static[i] = c
	}
	out.Credentials.Tokens = make([]config.TokenConfig, len(cfg.Credentials.Tokens))
	for i, t := range cfg.Credentials.Tokens {
		t.Secret = mask(t.Secret)
		out.Credentials.Tokens[i] = t
	}
	return out
}
