package main

import (
	"github.com/spf13/cobra"
)

func newDrainCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay pending offline changes now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, store, err := opts.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := book.Drain(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
