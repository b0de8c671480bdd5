package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the export document to file, or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, store, err := opts.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := book.ExportToFile(cmd.Context(), w); err != nil {
				return err
			}
			if f, ok := w.(*os.File); ok && len(args) == 1 {
				return f.Sync()
			}
			return nil
		},
	}
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all customers with the contents of an export document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			book, store, err := opts.openBook(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := book.ImportFromFile(cmd.Context(), f)
			if err != nil {
				return err
			}
			if len(result.Failures) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d records were skipped\n", len(result.Failures), result.Submitted)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
