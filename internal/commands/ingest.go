package commands

import (
	"github.com/spf13/cobra"
)

func newNightlyCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "nightly",
		Short: "Process the newest raw CSV once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			outcome, err := env.app.Nightly(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, outcome)
		},
	}
}

func newProcessCommand(opts *globalOptions) *cobra.Command {
	var dataType string

	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Clean and publish one raw CSV",
		Long: "Clean and publish one raw CSV. Without --type the data type is taken\n" +
			"from the file name prefix, e.g. market_prices_20240101.csv.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.app.Process(cmd.Context(), args[0], dataType)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVar(&dataType, "type", "", "data type (financial, market, forecast); inferred when omitted")
	return cmd
}
