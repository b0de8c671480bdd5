package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfajr/tailorbook/api"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <scenario>",
		Short: "Replace all customers with sample data",
		Long:  "Replace all customers with one of the sample scenarios. Run without arguments to list them.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, s := range api.Scenarios() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", s.ID, s.Description)
				}
				return nil
			}

			book, store, err := opts.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := api.ApplyScenario(cmd.Context(), book, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %s loaded\n", args[0])
			return nil
		},
	}
}
