package borrowing

import (
	"errors"
	"strings"
	"time"
)

type CreateBorrowingRequest struct {
	Book               int64  `json:"book" validate:"required,gt=0"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required"`
}

var errDateFormat = errors.New("expected_return_date: use YYYY-MM-DD or RFC 3339")

// ParseExpectedReturnDate accepts a plain date or an RFC 3339 timestamp and
// returns it in UTC.
func (r CreateBorrowingRequest) ParseExpectedReturnDate() (time.Time, error) {
	raw := strings.TrimSpace(r.ExpectedReturnDate)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errDateFormat
}

// ListFilter mirrors the ?is_active= and ?user_id= query parameters.
type ListFilter struct {
	ActiveOnly bool
	UserID     *int64
}
