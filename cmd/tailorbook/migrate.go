package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfajr/tailorbook/store/sqlite"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var to int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.Open(opts.cfg.DBPath, to)
			if err != nil {
				return err
			}
			defer store.Close()

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
	cmd.Flags().IntVar(&to, "to", sqlite.SchemaVersion, "target schema version")
	return cmd
}
