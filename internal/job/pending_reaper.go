package job

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"digiwallet/internal/config"
	"digiwallet/internal/model"
	"digiwallet/internal/repository"
)

// PendingReaper resolves stuck transaction rows. A row normally moves from
// pending to a terminal state inside one DB transaction, so pending rows old
// enough to cross the expiry horizon can only be debris from a crashed
// process; they are resolved to failed so that pending is never a final
// user-visible state.
type PendingReaper struct {
	db              *gorm.DB
	transactionRepo *repository.TransactionRepository
	cfg             *config.Config
	stopCh          chan struct{}
	interval        time.Duration
	batchSize       int
}

func NewPendingReaper(db *gorm.DB, cfg *config.Config) *PendingReaper {
	return &PendingReaper{
		db:              db,
		transactionRepo: repository.NewTransactionRepository(db),
		cfg:             cfg,
		stopCh:          make(chan struct{}),
		interval:        time.Minute,
		batchSize:       100,
	}
}

func (r *PendingReaper) Start(ctx context.Context) {
	log.Println("[PendingReaper] started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PendingReaper] context cancelled, stopping")
			return
		case <-r.stopCh:
			log.Println("[PendingReaper] stopped")
			return
		case <-ticker.C:
			r.reapStalePending(ctx)
		}
	}
}

func (r *PendingReaper) Stop() {
	close(r.stopCh)
}

func (r *PendingReaper) reapStalePending(ctx context.Context) {
	horizon := time.Now().Add(-r.cfg.Ledger.PendingExpiry()).Unix()

	stale, err := r.transactionRepo.ListStalePending(ctx, horizon, r.batchSize)
	if err != nil {
		log.Printf("[PendingReaper] failed to list stale pending rows: %v", err)
		return
	}

	for _, txn := range stale {
		err := r.transactionRepo.UpdateStatus(ctx, txn.ID, model.TransactionStatusPending, model.TransactionStatusFailed)
		if err != nil {
			log.Printf("[PendingReaper] failed to fail stale transaction: no=%s, err=%v", txn.TransactionNo, err)
			continue
		}
		log.Printf("[PendingReaper] stale pending transaction resolved to failed: no=%s", txn.TransactionNo)
	}
}
