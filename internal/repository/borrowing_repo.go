package repository

import (
	"context"
	"time"

	"library/internal/domain"

	"gorm.io/gorm"
)

type BorrowingRepository struct {
	db *gorm.DB
}

func NewBorrowingRepository(db *gorm.DB) *BorrowingRepository {
	return &BorrowingRepository{db: db}
}

type BorrowingFilter struct {
	UserID     *int64
	ActiveOnly bool
}

func (r *BorrowingRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payments.id ASC") })
}

func (r *BorrowingRepository) List(ctx context.Context, f BorrowingFilter, page Page) ([]domain.Borrowing, int64, error) {
	scoped := func(db *gorm.DB) *gorm.DB {
		if f.UserID != nil {
			db = db.Where("borrowings.user_id = ?", *f.UserID)
		}
		if f.ActiveOnly {
			db = db.Where("borrowings.actual_return_date IS NULL")
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Borrowing{}).Scopes(scoped).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.Borrowing
	err := r.withDetails(ctx).
		Scopes(scoped).
		Order("borrowings.borrow_date DESC").
		Order("borrowings.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *BorrowingRepository) GetByID(ctx context.Context, id int64) (*domain.Borrowing, error) {
	var b domain.Borrowing
	if err := r.withDetails(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BorrowingRepository) Create(ctx context.Context, b *domain.Borrowing) error {
	return r.db.WithContext(ctx).Omit("Book", "User", "Payments").Create(b).Error
}

// MarkReturned closes an open borrowing. It reports false when the borrowing
// was already closed, so a concurrent second return cannot restock twice.
func (r *BorrowingRepository) MarkReturned(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Borrowing{}).
		Where("id = ? AND actual_return_date IS NULL", id).
		UpdateColumn("actual_return_date", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListOverdue returns open borrowings whose expected return date is before now.
func (r *BorrowingRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Borrowing, error) {
	var rows []domain.Borrowing
	err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("actual_return_date IS NULL AND expected_return_date < ?", now).
		Order("expected_return_date ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
