package repository

import (
	"context"

	"library/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) List(ctx context.Context, page Page) ([]domain.Book, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Book{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []domain.Book
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&books).Error
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func (r *BookRepository) GetByID(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByIDForUpdate row-locks the book on PostgreSQL. SQLite ignores the clause.
func (r *BookRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookRepository) Create(ctx context.Context, b *domain.Book) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookRepository) Update(ctx context.Context, b *domain.Book) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Book{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"title":     b.Title,
			"author":    b.Author,
			"cover":     b.Cover,
			"inventory": b.Inventory,
			"daily_fee": b.DailyFee,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&domain.Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementInventory takes one copy off the shelf. It reports false, without
// error, when no copy is left; the check and the write are one statement so
// two concurrent borrowers cannot both take the last copy.
func (r *BookRepository) DecrementInventory(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Book{}).
		Where("id = ? AND inventory > 0", id).
		UpdateColumn("inventory", gorm.Expr("inventory - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BookRepository) IncrementInventory(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Book{}).
		Where("id = ?", id).
		UpdateColumn("inventory", gorm.Expr("inventory + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
