package jobs

import (
	"context"
	"log"
	"time"
)

// PurchaseCleanupJobName is the registered name of PurchaseCleanup
const PurchaseCleanupJobName = "purchase-cleanup"

// PendingPurchaseExpirer expires checkouts that were never paid
type PendingPurchaseExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurchaseCleanup marks stale pending purchases expired
type PurchaseCleanup struct {
	purchases PendingPurchaseExpirer
	maxAge    time.Duration
	now       func() time.Time
}

// NewPurchaseCleanup creates the cleanup job. Pending purchases older than
// maxAge are expired; maxAge defaults to 24 hours.
func NewPurchaseCleanup(purchases PendingPurchaseExpirer, maxAge time.Duration) *PurchaseCleanup {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &PurchaseCleanup{purchases: purchases, maxAge: maxAge, now: time.Now}
}

// Run expires pending purchases created before now minus maxAge
func (j *PurchaseCleanup) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	expired, err := j.purchases.ExpirePending(ctx, cutoff)
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Printf("🧹 [PURCHASE-CLEANUP] Expired %d pending purchases older than %v", expired, j.maxAge)
	}
	return nil
}
