package repository

import (
	"context"
	"time"

	"library/internal/domain"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

type PaymentFilter struct {
	UserID *int64
}

func (r *PaymentRepository) List(ctx context.Context, f PaymentFilter, page Page) ([]domain.Payment, int64, error) {
	scoped := func(db *gorm.DB) *gorm.DB {
		if f.UserID != nil {
			db = db.Joins("JOIN borrowings ON borrowings.id = payments.borrowing_id").
				Where("borrowings.user_id = ?", *f.UserID)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Payment{}).Scopes(scoped).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.Payment
	err := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Scopes(scoped).
		Preload("Borrowing").
		Order("payments.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Preload("Borrowing").First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Preload("Borrowing").Where("session_id = ?", sessionID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return r.db.WithContext(ctx).Omit("Borrowing").Create(p).Error
}

// MarkPaid moves a PENDING payment to PAID. It reports false when the payment
// was already paid, which makes repeated provider confirmations harmless.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Updates(map[string]interface{}{
			"status":  domain.PaymentPaid,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
