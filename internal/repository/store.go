package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Store groups the repositories that share one connection or transaction.
type Store struct {
	db *gorm.DB

	Books      *BookRepository
	Borrowings *BorrowingRepository
	Payments   *PaymentRepository
	Users      *UserRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Books:      NewBookRepository(db),
		Borrowings: NewBorrowingRepository(db),
		Payments:   NewPaymentRepository(db),
		Users:      NewUserRepository(db),
	}
}

// Transaction runs fn against a Store bound to a single database
// transaction. Any error returned by fn rolls the transaction back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Page is a limit/offset window over an ordered result set.
type Page struct {
	Limit  int
	Offset int
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
