package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CoverType string

const (
	CoverHard CoverType = "HARD"
	CoverSoft CoverType = "SOFT"
)

const (
	MaxTitleLength  = 70
	MaxAuthorLength = 70
)

type Book struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	Title     string          `gorm:"type:varchar(70);not null" json:"title"`
	Author    string          `gorm:"type:varchar(70);not null" json:"author"`
	Cover     CoverType       `gorm:"type:varchar(4);not null" json:"cover"`
	Inventory int             `gorm:"not null;default:0;check:chk_books_inventory,inventory >= 0" json:"inventory"`
	DailyFee  decimal.Decimal `gorm:"type:decimal(8,2);not null" json:"daily_fee"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Book) TableName() string { return "books" }

func (c CoverType) Valid() bool {
	return c == CoverHard || c == CoverSoft
}
