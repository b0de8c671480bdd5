package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newBackupCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, store, err := opts.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			b, err := book.CreateBackup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d created with %d customers\n", b.ID, b.Data.TotalCustomers)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, store, err := opts.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			backups, err := book.ListBackups(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range backups {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%d customers\n",
					b.ID, b.CreatedAt.Local().Format("2006-01-02 15:04"), b.Data.TotalCustomers)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Replace all customers with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid backup id %q", args[0])
			}

			book, store, err := opts.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := book.RestoreBackup(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	})

	return cmd
}
