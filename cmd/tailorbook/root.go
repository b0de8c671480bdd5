package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alfajr/tailorbook/config"
	"github.com/alfajr/tailorbook/store/sqlite"
	"github.com/alfajr/tailorbook/tailor"
)

// rootOptions holds configuration shared by all commands.
type rootOptions struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{cfg: config.Load(), logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "tailorbook",
		Short:         "Customer book for a tailoring shop",
		Long:          "Local customer, measurement and order records with backups and offline sync.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := config.NewLogger(opts.cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.cfg.DBPath, "db", opts.cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")

	// Add subcommands
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newBackupCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newDrainCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))

	return cmd
}

// openBook opens the database and a Book over it with default settings in place.
// The caller closes the returned store.
func (o *rootOptions) openBook(ctx context.Context) (*tailor.Book, *sqlite.Store, error) {
	store, err := sqlite.New(o.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	book, err := tailor.NewBook(ctx, store, tailor.BookConfig{
		Validator:       tailor.Validator{MinPhoneLength: o.cfg.MinPhoneLength},
		Logger:          o.logger,
		SaveDelay:       o.cfg.SaveDelay,
		BackupRetention: o.cfg.BackupRetention,
		MaxSyncAttempts: o.cfg.SyncMaxAttempts,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	defaults, err := tailor.DefaultSettings()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if _, err := book.InitializeDefaults(ctx, defaults); err != nil {
		store.Close()
		return nil, nil, err
	}

	return book, store, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
