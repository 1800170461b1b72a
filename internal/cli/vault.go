package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errNoPassphrase = errors.New("vault passphrase required (--passphrase or credentials.vault.passphrase)")

func newVaultCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage encrypted credential vault files",
	}
	cmd.AddCommand(newVaultSealCommand(s))
	cmd.AddCommand(newVaultListCommand(s))
	return cmd
}

func newVaultSealCommand(s *state) *cobra.Command {
	var in, out, passphrase string

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a YAML host-to-credential map into a vault file",
		Example: `  # creds.yaml:
  #   hub.example.com:
  #     scheme: Bearer
  #     token: s3cr3t
  pluginhub vault seal --in creds.yaml --out creds.vault`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase = s.passphrase(passphrase)
			if passphrase == "" {
				return errNoPassphrase
			}

			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("failed to read credentials: %w", err)
			}
			entries := map[string]credentials.Credential{}
			if err := yaml.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("failed to parse credentials: %w", err)
			}

			sealed, err := credentials.Seal(entries, passphrase)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, sealed, 0o600); err != nil {
				return fmt.Errorf("failed to write vault: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sealed %d credential(s) into %s\n", len(entries), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "YAML file mapping hosts to credentials")
	cmd.Flags().StringVar(&out, "out", "", "vault file to write")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "vault passphrase")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newVaultListCommand(s *state) *cobra.Command {
	var passphrase string

	cmd := &cobra.Command{
		Use:   "list <vault-file>",
		Short: "List the hosts stored in a vault file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase = s.passphrase(passphrase)
			if passphrase == "" {
				return errNoPassphrase
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read vault: %w", err)
			}
			entries, err := credentials.Unseal(raw, passphrase)
			if err != nil {
				return err
			}

			hosts := make([]string, 0, len(entries))
			for host := range entries {
				hosts = append(hosts, host)
			}
			slices.Sort(hosts)

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"HOST", "SCHEME", "USERNAME"})
			for _, host := range hosts {
				t.AppendRow(table.Row{host, entries[host].Scheme, entries[host].Username})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&passphrase, "passphrase", "", "vault passphrase")
	return cmd
}

func (s *state) passphrase(flag string) string {
	if flag != "" {
		return flag
	}
	return s.cfg.Credentials.Vault.Passphrase
}
