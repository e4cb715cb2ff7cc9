package usecase

import (
	"github.com/syncrvault/syncr/internal/adapter/observability"
	"github.com/syncrvault/syncr/internal/domain"
)

// QuotaService exposes the day's quota ledger for the admin surface.
type QuotaService struct {
	Ledger domain.QuotaLedger
	Limit  int
}

// NewQuotaService constructs a QuotaService.
func NewQuotaService(ledger domain.QuotaLedger, limit int) QuotaService {
	return QuotaService{Ledger: ledger, Limit: limit}
}

// Usage returns today's used units and the configured daily limit.
func (s QuotaService) Usage(ctx domain.Context) (total, limit int, err error) {
	total, err = s.Ledger.Used(ctx)
	if err != nil {
		return 0, 0, err
	}
	observability.QuotaUnitsUsed.Set(float64(total))
	return total, s.Limit, nil
}

// Set overwrites today's total, for quota corrections after manual API
// use or console resets.
func (s QuotaService) Set(ctx domain.Context, value int) error {
	if err := s.Ledger.Set(ctx, value); err != nil {
		return err
	}
	observability.QuotaUnitsUsed.Set(float64(value))
	return nil
}
