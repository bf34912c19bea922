package jobs

import (
	"context"
	"log"
	"time"
)

// OpportunityExpiryJobName is the registered name of OpportunityExpiry
const OpportunityExpiryJobName = "opportunity-expiry"

// OpportunityCloser closes opportunities whose deadline has passed
type OpportunityCloser interface {
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// OpportunityExpiry closes open opportunities past their deadline
type OpportunityExpiry struct {
	opportunities OpportunityCloser
	now           func() time.Time
}

// NewOpportunityExpiry creates the expiry job
func NewOpportunityExpiry(opportunities OpportunityCloser) *OpportunityExpiry {
	return &OpportunityExpiry{opportunities: opportunities, now: time.Now}
}

// Run closes every expired opportunity
func (j *OpportunityExpiry) Run(ctx context.Context) error {
	closed, err := j.opportunities.CloseExpired(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	if closed > 0 {
		log.Printf("📅 [OPPORTUNITY-EXPIRY] Closed %d expired opportunities", closed)
	}
	return nil
}
