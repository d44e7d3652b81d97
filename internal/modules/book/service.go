package book

import (
	"context"
	"errors"
	"fmt"

	"library/internal/domain"
	"library/internal/repository"
)

var ErrNotFound = errors.New("book not found")

type Service struct {
	books *repository.BookRepository
}

func NewService(books *repository.BookRepository) *Service {
	return &Service{books: books}
}

func (s *Service) List(ctx context.Context, page repository.Page) ([]domain.Book, int64, error) {
	books, total, err := s.books.List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	return books, total, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Book, error) {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (s *Service) Create(ctx context.Context, req BookRequest) (*domain.Book, error) {
	var b domain.Book
	req.apply(&b)
	if err := s.books.Create(ctx, &b); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return &b, nil
}

// Replace overwrites every editable field.
func (s *Service) Replace(ctx context.Context, id int64, req BookRequest) (*domain.Book, error) {
	return s.update(ctx, id, req.apply)
}

// Patch changes only the fields present in req.
func (s *Service) Patch(ctx context.Context, id int64, req PatchBookRequest) (*domain.Book, error) {
	return s.update(ctx, id, req.apply)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.books.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

func (s *Service) update(ctx context.Context, id int64, apply func(*domain.Book)) (*domain.Book, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(b)

	if err := s.books.Update(ctx, b); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update book: %w", err)
	}
	return s.Get(ctx, id)
}
