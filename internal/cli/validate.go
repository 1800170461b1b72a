package cli

import (
	"fmt"

	"github.com/pluginhub/pluginhub/internal/plugins"
	"github.com/spf13/cobra"
)

func newValidateCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate plugin manifest files",
		Long: `Validate checks each manifest.json or manifest.yaml file against the
manifest constraints and reports every violated field.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator := plugins.NewManifestValidator(s.logger)

			results := make([]manifestResult, 0, len(args))
			invalid := 0
			for _, path := range args {
				result := manifestResult{File: path}

				m, err := plugins.LoadManifest(path)
				if err != nil {
					result.Error = err.Error()
				} else {
					result.Violations = validator.Check(m)
					result.Valid = len(result.Violations) == 0
				}

				if !result.Valid {
					invalid++
				}
				results = append(results, result)
			}

			if err := renderManifestResults(cmd.OutOrStdout(), s.output, results); err != nil {
				return err
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d manifest(s) invalid", invalid, len(args))
			}
			return nil
		},
	}
}
