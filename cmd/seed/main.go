package main

import (
	"math/rand"
	"time"

	"library/internal/config"
	"library/internal/database"
	"library/internal/domain"
	"library/internal/pkg/logging"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("error", false)
		bootLogger.Fatal().Err(err).Msg("config load failed")
	}
	logger := logging.New(cfg.LogLevel, true)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("DB connection failed")
	}

	logger.Info().Msg("running AutoMigrate")
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("AutoMigrate failed")
	}

	// Cleanup old data (in safe order to avoid foreign key errors)
	logger.Info().Msg("cleaning old data")
	for _, table := range []string{"payments", "borrowings", "books", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			logger.Fatal().Err(err).Str("table", table).Msg("cleanup failed")
		}
	}

	// ================== USERS ==================
	users := []struct {
		email, first, last, password string
		staff                        bool
	}{
		{"admin@library.local", "Library", "Admin", "admin123", true},
		{"anna@example.com", "Anna", "Reader", "reader123", false},
		{"ben@example.com", "Ben", "Reader", "reader123", false},
	}
	created := make([]domain.User, 0, len(users))
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal().Err(err).Msg("hash password")
		}
		row := domain.User{Email: u.email, FirstName: u.first, LastName: u.last, PasswordHash: string(hash), IsStaff: u.staff}
		if err := db.Create(&row).Error; err != nil {
			logger.Fatal().Err(err).Str("email", u.email).Msg("create user")
		}
		created = append(created, row)
		logger.Info().Str("email", u.email).Str("password", u.password).Bool("staff", u.staff).Msg("user created")
	}

	// ================== BOOKS ==================
	titles := [][2]string{
		{"Dune", "Frank Herbert"},
		{"Emma", "Jane Austen"},
		{"The Trial", "Franz Kafka"},
		{"Solaris", "Stanislaw Lem"},
		{"Beloved", "Toni Morrison"},
		{"Neuromancer", "William Gibson"},
		{"Middlemarch", "George Eliot"},
	}
	books := make([]domain.Book, 0, len(titles))
	for i, t := range titles {
		cover := domain.CoverHard
		if i%2 == 1 {
			cover = domain.CoverSoft
		}
		b := domain.Book{
			Title:     t[0],
			Author:    t[1],
			Cover:     cover,
			Inventory: 1 + rand.Intn(5),
			DailyFee:  decimal.NewFromInt(int64(25 + rand.Intn(100))).Div(decimal.NewFromInt(100)),
		}
		if err := db.Create(&b).Error; err != nil {
			logger.Fatal().Err(err).Str("title", b.Title).Msg("create book")
		}
		books = append(books, b)
	}
	logger.Info().Int("count", len(books)).Msg("books created")

	// ================== BORROWINGS ==================
	// One overdue and one open borrowing per reader, so the sweep has
	// something to report right after seeding.
	now := time.Now().UTC()
	for i, reader := range created[1:] {
		for j, offset := range []int{-3, 5} {
			book := books[(i*2+j)%len(books)]
			b := domain.Borrowing{
				BorrowDate:         now.AddDate(0, 0, offset-7),
				ExpectedReturnDate: now.AddDate(0, 0, offset),
				BookID:             book.ID,
				UserID:             reader.ID,
			}
			if err := db.Omit(clause.Associations).Create(&b).Error; err != nil {
				logger.Fatal().Err(err).Msg("create borrowing")
			}
			if err := db.Model(&domain.Book{}).Where("id = ? AND inventory > 0", book.ID).
				UpdateColumn("inventory", gorm.Expr("inventory - 1")).Error; err != nil {
				logger.Fatal().Err(err).Msg("decrement inventory")
			}
			logger.Info().Str("reader", reader.Email).Str("book", book.Title).
				Str("expected_return_date", b.ExpectedReturnDate.Format("2006-01-02")).
				Msg("borrowing created")
		}
	}

	logger.Info().Msg("seed completed")
}
