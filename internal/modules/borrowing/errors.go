package borrowing

import "errors"

var (
	ErrNotFound          = errors.New("borrowing not found")
	ErrBookNotFound      = errors.New("book not found")
	ErrOutOfInventory    = errors.New("this book is out of inventory")
	ErrAlreadyReturned   = errors.New("this book is already returned")
	ErrInvalidReturnDate = errors.New("expected return date must be after the borrow date")
)
