/*
scheduler.go - Automated backup scheduler

PURPOSE:
  Periodically checks whether a backup is due and creates one. A backup is
  due when BackupInterval has passed since the lastBackup setting, or when
  no backup was ever taken.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks immediately on start, then on every tick
  - Failures are logged and retried on the next tick

CONFIGURATION:
  - CheckInterval:  How often to check (default: 1 hour)
  - BackupInterval: Minimum gap between backups (default: 24 hours)
  - Enabled:        Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBackupScheduler(book, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreateBackup endpoint (manual backup)
  - tailor/backup.go: Book.CreateBackup
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alfajr/tailorbook/tailor"
)

// BackupScheduler creates interval backups of the book.
type BackupScheduler struct {
	Book           *tailor.Book
	Logger         *zap.Logger
	CheckInterval  time.Duration
	BackupInterval time.Duration
	Enabled        bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBackupScheduler creates a new scheduler.
func NewBackupScheduler(book *tailor.Book, logger *zap.Logger) *BackupScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupScheduler{
		Book:           book,
		Logger:         logger.Named("scheduler"),
		CheckInterval:  1 * time.Hour,
		BackupInterval: 24 * time.Hour,
		Enabled:        true,
	}
}

// Start begins the scheduler.
func (bs *BackupScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.Logger.Info("disabled, not starting")
		return
	}
	if bs.ticker != nil {
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.stop = make(chan struct{})
	bs.wg.Add(1)

	go bs.run(bs.ticker, bs.stop)

	bs.Logger.Info("started",
		zap.Duration("check_interval", bs.CheckInterval),
		zap.Duration("backup_interval", bs.BackupInterval),
	)
}

// Stop stops the scheduler.
func (bs *BackupScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.ticker = nil
		bs.Logger.Info("stopped")
	}
}

func (bs *BackupScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer bs.wg.Done()

	// Run immediately on start
	bs.CheckAndBackup(context.Background())

	for {
		select {
		case <-ticker.C:
			bs.CheckAndBackup(context.Background())
		case <-stop:
			return
		}
	}
}

// CheckAndBackup creates a backup if one is due and reports whether it did.
func (bs *BackupScheduler) CheckAndBackup(ctx context.Context) bool {
	due, err := bs.Book.BackupDue(ctx, bs.BackupInterval)
	if err != nil {
		bs.Logger.Error("read last backup time", zap.Error(err))
		return false
	}
	if !due {
		return false
	}

	backup, err := bs.Book.CreateBackup(ctx)
	if err != nil {
		bs.Logger.Error("auto backup failed", zap.Error(err))
		return false
	}
	bs.Logger.Info("auto backup created",
		zap.Int64("backup_id", backup.ID),
		zap.Int("customers", backup.Data.TotalCustomers),
	)
	return true
}
