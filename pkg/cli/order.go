package cli

import (
	"github.com/spf13/cobra"
)

func newOrderCommand(a *app) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print packages in dependency order",
		Long: `Print every package after all of its dependencies, one per line, for
building or releasing in sequence. Ties are broken by name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("prefix") {
				a.cfg.Prefix = prefix
			}

			repo, err := a.load(cmd.Context())
			if err != nil {
				return err
			}

			order, err := repo.Order()
			if err != nil {
				return err
			}
			return printNames(cmd.OutOrStdout(), a.cfg.Prefix, order)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix prepended to every printed package name")
	return cmd
}
