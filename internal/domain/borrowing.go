package domain

import (
	"encoding/json"
	"time"
)

type Borrowing struct {
	ID                 int64      `gorm:"primaryKey" json:"id"`
	BorrowDate         time.Time  `gorm:"not null;index" json:"borrow_date"`
	ExpectedReturnDate time.Time  `gorm:"not null" json:"expected_return_date"`
	ActualReturnDate   *time.Time `gorm:"index" json:"actual_return_date"`
	BookID             int64      `gorm:"not null;index" json:"book_id"`
	UserID             int64      `gorm:"not null;index" json:"user_id"`

	Book     *Book     `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE" json:"book,omitempty"`
	User     *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Payments []Payment `gorm:"foreignKey:BorrowingID" json:"payments"`
}

func (Borrowing) TableName() string { return "borrowings" }

func (b *Borrowing) IsActive() bool {
	return b.ActualReturnDate == nil
}

// BorrowDays is the number of calendar days the book is booked for, never less than one.
func (b *Borrowing) BorrowDays() int {
	days := DaysBetween(b.BorrowDate, b.ExpectedReturnDate)
	if days < 1 {
		return 1
	}
	return days
}

// OverdueDays is the number of calendar days between the expected and the
// actual return. Zero for open borrowings and on-time returns.
func (b *Borrowing) OverdueDays() int {
	if b.ActualReturnDate == nil {
		return 0
	}
	days := DaysBetween(b.ExpectedReturnDate, *b.ActualReturnDate)
	if days < 0 {
		return 0
	}
	return days
}

// MarshalJSON adds the borrower's display name as "user" when the user is
// loaded, and always renders payments as a list.
func (b Borrowing) MarshalJSON() ([]byte, error) {
	type plain Borrowing
	out := struct {
		plain
		User     string    `json:"user,omitempty"`
		Payments []Payment `json:"payments"`
	}{plain: plain(b), Payments: b.Payments}
	if b.User != nil {
		out.User = b.User.DisplayName()
	}
	if out.Payments == nil {
		out.Payments = []Payment{}
	}
	return json.Marshal(out)
}

// DaysBetween counts UTC calendar-date boundaries from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
