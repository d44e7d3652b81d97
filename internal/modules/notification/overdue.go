package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library/internal/domain"
	"library/internal/pkg/metrics"

	"github.com/rs/zerolog"
)

type OverdueLister interface {
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Borrowing, error)
}

// OverdueSweeper reports every open borrowing past its expected return date.
type OverdueSweeper struct {
	borrowings OverdueLister
	sender     Sender
	logger     zerolog.Logger
	metrics    *metrics.Collector
	now        func() time.Time
}

func NewOverdueSweeper(borrowings OverdueLister, sender Sender, logger zerolog.Logger, m *metrics.Collector) *OverdueSweeper {
	return &OverdueSweeper{
		borrowings: borrowings,
		sender:     sender,
		logger:     logger,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run sends one message per overdue borrowing, or a single "none" message.
// Delivery failures do not stop the sweep; they are joined into the error.
func (s *OverdueSweeper) Run(ctx context.Context) (int, error) {
	start := time.Now()

	rows, err := s.borrowings.ListOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list overdue borrowings: %w", err)
	}
	if s.metrics != nil {
		s.metrics.OverdueBorrowings.Set(float64(len(rows)))
	}

	if len(rows) == 0 {
		if err := s.sender.Send(ctx, NoOverdueMessage); err != nil {
			return 0, fmt.Errorf("send overdue summary: %w", err)
		}
		s.logger.Info().Dur("took", time.Since(start)).Msg("overdue sweep: nothing overdue")
		return 0, nil
	}

	var errs []error
	for i := range rows {
		if err := s.sender.Send(ctx, OverdueMessage(&rows[i])); err != nil {
			errs = append(errs, fmt.Errorf("borrowing %d: %w", rows[i].ID, err))
		}
	}

	s.logger.Info().
		Int("overdue", len(rows)).
		Int("failed", len(errs)).
		Dur("took", time.Since(start)).
		Msg("overdue sweep completed")
	return len(rows), errors.Join(errs...)
}

// Schedule runs the sweep every interval until ctx is done or the returned
// channel is closed.
func (s *OverdueSweeper) Schedule(ctx context.Context, interval time.Duration) chan struct{} {
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Run(ctx); err != nil {
					s.logger.Error().Err(err).Msg("scheduled overdue sweep failed")
				}
			case <-stopCh:
				s.logger.Info().Msg("overdue sweep stopped")
				return
			case <-ctx.Done():
				s.logger.Info().Msg("overdue sweep stopped (context done)")
				return
			}
		}
	}()

	s.logger.Info().Dur("interval", interval).Msg("overdue sweep scheduled")
	return stopCh
}
