package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

type PaymentType string

const (
	PaymentTypePayment PaymentType = "PAYMENT"
	PaymentTypeFine    PaymentType = "FINE"
)

// FineMultiplier scales the daily fee for every overdue day.
const FineMultiplier = 2

type Payment struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	Status      PaymentStatus   `gorm:"type:varchar(7);not null;default:'PENDING';index" json:"status"`
	Type        PaymentType     `gorm:"type:varchar(7);not null" json:"type"`
	BorrowingID int64           `gorm:"not null;index" json:"borrowing_id"`
	SessionURL  string          `gorm:"type:text" json:"session_url"`
	SessionID   string          `gorm:"type:varchar(255);uniqueIndex" json:"session_id"`
	MoneyToPay  decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"money_to_pay"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Borrowing *Borrowing `gorm:"foreignKey:BorrowingID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Payment) TableName() string { return "payments" }

var hundred = decimal.NewFromInt(100)

// AmountDue is the charge for days at dailyFee, doubled for fines.
func AmountDue(dailyFee decimal.Decimal, days int, t PaymentType) decimal.Decimal {
	amount := dailyFee.Mul(decimal.NewFromInt(int64(days)))
	if t == PaymentTypeFine {
		amount = amount.Mul(decimal.NewFromInt(FineMultiplier))
	}
	return amount.Round(2)
}

// AmountInCents converts a currency amount into the provider's minor units.
func AmountInCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
