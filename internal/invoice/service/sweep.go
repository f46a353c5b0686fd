package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/quoteflow/internal/document"
)

// SweepOverdue flips PENDING invoices past their due date to OVERDUE, one
// transaction per invoice so a single failure never blocks the rest of the
// batch. An invoice that was paid or cancelled between listing and locking
// is skipped, not an error.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	due, err := s.repo.ListDuePending(ctx, s.db, asOf, limit)
	if err != nil {
		return 0, document.WrapStorage(err)
	}

	flipped := 0
	for _, invoice := range due {
		if _, err := s.MarkAsOverdue(ctx, invoice.OrgID, invoice.ID); err != nil {
			var invalid *document.InvalidTransitionError
			if errors.As(err, &invalid) || errors.Is(err, document.ErrNotFound) {
				continue
			}
			s.log.Warn("overdue sweep stopped",
				zap.String("invoice_id", invoice.ID.String()),
				zap.Int("flipped", flipped),
				zap.Error(err),
			)
			return flipped, err
		}
		flipped++
	}
	return flipped, nil
}
