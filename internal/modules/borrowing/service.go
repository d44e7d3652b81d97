package borrowing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library/internal/domain"
	"library/internal/modules/notification"
	"library/internal/pkg/metrics"
	"library/internal/repository"

	"github.com/rs/zerolog"
)

// PaymentStarter opens a checkout for a borrowing inside the caller's transaction.
type PaymentStarter interface {
	StartCheckout(ctx context.Context, tx *repository.Store, b *domain.Borrowing, book *domain.Book, typ domain.PaymentType, days int) (*domain.Payment, error)
}

type Notifier interface {
	Notify(text string)
}

type Service struct {
	store    *repository.Store
	payments PaymentStarter
	notifier Notifier
	logger   zerolog.Logger
	metrics  *metrics.Collector
	now      func() time.Time
}

func NewService(store *repository.Store, payments PaymentStarter, notifier Notifier, logger zerolog.Logger, m *metrics.Collector) *Service {
	return &Service{
		store:    store,
		payments: payments,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List applies the user filter only for staff; readers always see their own rows.
func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter, page repository.Page) ([]domain.Borrowing, int64, error) {
	rf := repository.BorrowingFilter{ActiveOnly: f.ActiveOnly}
	switch {
	case !actor.IsStaff:
		rf.UserID = &actor.UserID
	case f.UserID != nil:
		rf.UserID = f.UserID
	}

	rows, total, err := s.store.Borrowings.List(ctx, rf, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list borrowings: %w", err)
	}
	return rows, total, nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Borrowing, error) {
	b, err := s.store.Borrowings.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get borrowing: %w", err)
	}
	if !actor.CanSee(b.UserID) {
		return nil, ErrNotFound
	}
	return b, nil
}

// Create borrows one copy of a book for the actor. The borrowing row, the
// inventory decrement, the checkout session and the payment row commit
// together or not at all.
func (s *Service) Create(ctx context.Context, actor domain.Actor, bookID int64, expected time.Time) (*domain.Borrowing, error) {
	now := s.now()
	if !domain.DateOf(expected).After(domain.DateOf(now)) {
		return nil, ErrInvalidReturnDate
	}

	b := &domain.Borrowing{
		BorrowDate:         now,
		ExpectedReturnDate: expected,
		BookID:             bookID,
		UserID:             actor.UserID,
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		book, err := tx.Books.GetByIDForUpdate(ctx, bookID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrBookNotFound
			}
			return fmt.Errorf("get book: %w", err)
		}

		if err := tx.Borrowings.Create(ctx, b); err != nil {
			return fmt.Errorf("create borrowing: %w", err)
		}

		ok, err := tx.Books.DecrementInventory(ctx, bookID)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}
		if !ok {
			return ErrOutOfInventory
		}

		if _, err := s.payments.StartCheckout(ctx, tx, b, book, domain.PaymentTypePayment, b.BorrowDays()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOutOfInventory) && s.metrics != nil {
			s.metrics.OutOfInventory.Inc()
		}
		return nil, err
	}

	created, err := s.store.Borrowings.GetByID(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("reload borrowing: %w", err)
	}

	if s.metrics != nil {
		s.metrics.BorrowingsCreated.Inc()
	}
	s.logger.Info().
		Int64("borrowing_id", created.ID).
		Int64("book_id", created.BookID).
		Int64("user_id", created.UserID).
		Msg("borrowing created")

	if s.notifier != nil && created.User != nil && created.Book != nil {
		s.notifier.Notify(notification.BorrowingCreatedMessage(created, created.User, created.Book))
	}
	return created, nil
}

// Return closes an open borrowing, fines a late return and puts the copy
// back on the shelf, all in one transaction.
func (s *Service) Return(ctx context.Context, actor domain.Actor, id int64) (*domain.Borrowing, error) {
	now := s.now()

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		b, err := tx.Borrowings.GetByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNotFound
			}
			return fmt.Errorf("get borrowing: %w", err)
		}
		if !actor.CanSee(b.UserID) {
			return ErrNotFound
		}
		if !b.IsActive() {
			return ErrAlreadyReturned
		}

		closed, err := tx.Borrowings.MarkReturned(ctx, b.ID, now)
		if err != nil {
			return fmt.Errorf("mark returned: %w", err)
		}
		if !closed {
			return ErrAlreadyReturned
		}
		b.ActualReturnDate = &now

		if days := b.OverdueDays(); days >= 1 {
			if b.Book == nil {
				return ErrBookNotFound
			}
			if _, err := s.payments.StartCheckout(ctx, tx, b, b.Book, domain.PaymentTypeFine, days); err != nil {
				return err
			}
		}

		if err := tx.Books.IncrementInventory(ctx, b.BookID); err != nil {
			return fmt.Errorf("increment inventory: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	returned, err := s.store.Borrowings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload borrowing: %w", err)
	}

	if s.metrics != nil {
		s.metrics.BorrowingsReturned.Inc()
	}
	s.logger.Info().
		Int64("borrowing_id", returned.ID).
		Int("overdue_days", returned.OverdueDays()).
		Msg("borrowing returned")
	return returned, nil
}
