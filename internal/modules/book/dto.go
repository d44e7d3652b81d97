package book

import (
	"library/internal/domain"

	"github.com/shopspring/decimal"
)

// BookRequest is the body of POST and PUT.
type BookRequest struct {
	Title     string           `json:"title" validate:"required,max=70"`
	Author    string           `json:"author" validate:"required,max=70"`
	Cover     string           `json:"cover" validate:"required,oneof=HARD SOFT"`
	Inventory *int             `json:"inventory" validate:"required,gte=0"`
	DailyFee  *decimal.Decimal `json:"daily_fee" validate:"required,money"`
}

func (r BookRequest) apply(b *domain.Book) {
	b.Title = r.Title
	b.Author = r.Author
	b.Cover = domain.CoverType(r.Cover)
	b.Inventory = *r.Inventory
	b.DailyFee = r.DailyFee.Round(2)
}

// PatchBookRequest is the body of PATCH. Absent fields keep their value.
type PatchBookRequest struct {
	Title     *string          `json:"title" validate:"omitnil,min=1,max=70"`
	Author    *string          `json:"author" validate:"omitnil,min=1,max=70"`
	Cover     *string          `json:"cover" validate:"omitnil,oneof=HARD SOFT"`
	Inventory *int             `json:"inventory" validate:"omitnil,gte=0"`
	DailyFee  *decimal.Decimal `json:"daily_fee" validate:"omitnil,money"`
}

func (r PatchBookRequest) apply(b *domain.Book) {
	if r.Title != nil {
		b.Title = *r.Title
	}
	if r.Author != nil {
		b.Author = *r.Author
	}
	if r.Cover != nil {
		b.Cover = domain.CoverType(*r.Cover)
	}
	if r.Inventory != nil {
		b.Inventory = *r.Inventory
	}
	if r.DailyFee != nil {
		b.DailyFee = r.DailyFee.Round(2)
	}
}
