package notification

import (
	"fmt"

	"library/internal/domain"
)

const NoOverdueMessage = "No borrowings overdue today!"

const dateLayout = "2006-01-02"

func BorrowingCreatedMessage(b *domain.Borrowing, user *domain.User, book *domain.Book) string {
	return fmt.Sprintf(
		"New borrowing created:\nUser: %s\nBook: %s\nBorrow date: %s",
		user.Email, book.Title, b.BorrowDate.UTC().Format(dateLayout),
	)
}

func OverdueMessage(b *domain.Borrowing) string {
	var email, title string
	if b.User != nil {
		email = b.User.Email
	}
	if b.Book != nil {
		title = b.Book.Title
	}
	return fmt.Sprintf(
		"This borrowing is overdue:\nUser: %s\nBook: %s\nBorrow date: %s\nExpected return date: %s",
		email, title,
		b.BorrowDate.UTC().Format(dateLayout),
		b.ExpectedReturnDate.UTC().Format(dateLayout),
	)
}
