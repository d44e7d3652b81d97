package borrowing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library/internal/database"
	"library/internal/domain"
	"library/internal/middleware"
	"library/internal/modules/payment"
	"library/internal/pkg/jwt"
	"library/internal/pkg/metrics"
	"library/internal/repository"
)

type stubProvider struct {
	mu  sync.Mutex
	seq int
	err error
}

func (p *stubProvider) CreateSession(_ context.Context, _ payment.SessionRequest) (*payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.seq++
	return &payment.Session{
		ID:            fmt.Sprintf("cs_%d", p.seq),
		URL:           fmt.Sprintf("https://checkout.example/cs_%d", p.seq),
		PaymentStatus: payment.SessionUnpaid,
	}, nil
}

func (p *stubProvider) GetSession(context.Context, string) (*payment.Session, error) {
	return nil, payment.ErrSessionNotFound
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

type env struct {
	store    *repository.Store
	provider *stubProvider
	notifier *recordingNotifier
	service  *Service
	router   *gin.Engine
	tokens   *jwt.Service
	reader   *domain.User
	other    *domain.User
	staff    *domain.User
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:borrowing_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	store := repository.NewStore(db)
	ctx := context.Background()
	users := make([]*domain.User, 3)
	for i, email := range []string{"reader@example.com", "other@example.com", "staff@example.com"} {
		users[i] = &domain.User{Email: email, PasswordHash: "x", IsStaff: i == 2}
		require.NoError(t, store.Users.Create(ctx, users[i]))
	}

	provider := &stubProvider{}
	notifier := &recordingNotifier{}
	m := metrics.New()
	payments := payment.NewService(store, provider, nil, "http://library.test", zerolog.Nop(), m)
	svc := NewService(store, payments, notifier, zerolog.Nop(), m)
	tokens := jwt.New("secret", time.Hour, time.Hour)

	r := gin.New()
	protected := r.Group("/api")
	protected.Use(middleware.JWTAuth(tokens))
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(protected)

	return &env{
		store:    store,
		provider: provider,
		notifier: notifier,
		service:  svc,
		router:   r,
		tokens:   tokens,
		reader:   users[0],
		other:    users[1],
		staff:    users[2],
	}
}

func (e *env) seedBook(t *testing.T, inventory int) *domain.Book {
	t.Helper()
	b := &domain.Book{Title: "Dune", Author: "Frank Herbert", Cover: domain.CoverSoft, Inventory: inventory,
		DailyFee: decimal.RequireFromString("0.50")}
	require.NoError(t, e.store.Books.Create(context.Background(), b))
	return b
}

func (e *env) token(t *testing.T, u *domain.User) string {
	t.Helper()
	tok, err := e.tokens.GenerateAccessToken(u.ID, u.IsStaff)
	require.NoError(t, err)
	return tok
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) countBorrowings(t *testing.T) int64 {
	t.Helper()
	_, total, err := e.store.Borrowings.List(context.Background(), repository.BorrowingFilter{}, repository.Page{Limit: 100})
	require.NoError(t, err)
	return total
}

type envelope struct {
	Success bool             `json:"success"`
	Data    domain.Borrowing `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func inDays(n int) string {
	return time.Now().UTC().AddDate(0, 0, n).Format("2006-01-02")
}

func TestCreate_DecrementsInventoryAndOpensCheckout(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 5)

	w := e.do(http.MethodPost, "/api/borrowings", e.token(t, e.reader),
		gin.H{"book": book.ID, "expected_return_date": inDays(3)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got := decode(t, w)
	assert.Equal(t, book.ID, got.Data.BookID)
	assert.Equal(t, e.reader.ID, got.Data.UserID)
	assert.Nil(t, got.Data.ActualReturnDate)
	require.Len(t, got.Data.Payments, 1)
	assert.Equal(t, domain.PaymentPending, got.Data.Payments[0].Status)
	assert.Equal(t, domain.PaymentTypePayment, got.Data.Payments[0].Type)
	assert.True(t, decimal.RequireFromString("1.50").Equal(got.Data.Payments[0].MoneyToPay))
	assert.Equal(t, "cs_1", got.Data.Payments[0].SessionID)

	after, err := e.store.Books.GetByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, after.Inventory)

	require.Len(t, e.notifier.texts, 1)
	assert.Contains(t, e.notifier.texts[0], "New borrowing created:\nUser: reader@example.com\nBook: Dune")
}

func TestCreate_OutOfInventory(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 0)

	w := e.do(http.MethodPost, "/api/borrowings", e.token(t, e.reader),
		gin.H{"book": book.ID, "expected_return_date": inDays(2)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This book is out of inventory", decode(t, w).Error.Message)
	assert.Equal(t, int64(0), e.countBorrowings(t))
	assert.Empty(t, e.notifier.texts)
}

func TestCreate_ProviderFailureRollsBack(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 2)
	e.provider.err = errors.New("stripe unavailable")

	w := e.do(http.MethodPost, "/api/borrowings", e.token(t, e.reader),
		gin.H{"book": book.ID, "expected_return_date": inDays(2)})
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "PAYMENT_PROVIDER_ERROR", decode(t, w).Error.Code)

	assert.Equal(t, int64(0), e.countBorrowings(t))
	after, err := e.store.Books.GetByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Inventory)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 2)
	tok := e.token(t, e.reader)

	w := e.do(http.MethodPost, "/api/borrowings", tok, gin.H{"book": book.ID + 99, "expected_return_date": inDays(2)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Book not found", decode(t, w).Error.Message)

	w = e.do(http.MethodPost, "/api/borrowings", tok, gin.H{"book": book.ID, "expected_return_date": inDays(0)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/borrowings", tok, gin.H{"book": book.ID, "expected_return_date": "next week"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/borrowings", tok, gin.H{"expected_return_date": inDays(2)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Error.Message, "book")

	w = e.do(http.MethodPost, "/api/borrowings", "", gin.H{"book": book.ID, "expected_return_date": inDays(2)})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(0), e.countBorrowings(t))
}

func TestReturn_RestocksAndRejectsSecondReturn(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 1)
	tok := e.token(t, e.reader)

	w := e.do(http.MethodPost, "/api/borrowings", tok, gin.H{"book": book.ID, "expected_return_date": inDays(4)})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w).Data.ID

	w = e.do(http.MethodPost, fmt.Sprintf("/api/borrowings/%d/return", id), e.token(t, e.other), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/borrowings/%d/return", id), tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	require.NotNil(t, got.Data.ActualReturnDate)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), got.Data.ActualReturnDate.UTC().Format("2006-01-02"))
	assert.Len(t, got.Data.Payments, 1)

	after, err := e.store.Books.GetByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Inventory)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/borrowings/%d/return", id), tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "This book is already returned", decode(t, w).Error.Message)

	after, err = e.store.Books.GetByID(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Inventory)
}

func TestReturn_LateReturnCreatesFine(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 0)
	ctx := context.Background()

	now := time.Now().UTC()
	b := &domain.Borrowing{
		BorrowDate:         now.AddDate(0, 0, -10),
		ExpectedReturnDate: now.AddDate(0, 0, -3),
		BookID:             book.ID,
		UserID:             e.reader.ID,
	}
	require.NoError(t, e.store.Borrowings.Create(ctx, b))

	returned, err := e.service.Return(ctx, domain.Actor{UserID: e.staff.ID, IsStaff: true}, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, returned.OverdueDays())

	require.Len(t, returned.Payments, 1)
	fine := returned.Payments[0]
	assert.Equal(t, domain.PaymentTypeFine, fine.Type)
	assert.Equal(t, domain.PaymentPending, fine.Status)
	assert.True(t, decimal.RequireFromString("3.00").Equal(fine.MoneyToPay), fine.MoneyToPay.String())

	after, err := e.store.Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Inventory)
}

func TestReturn_FineFailureKeepsBorrowingOpen(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 0)
	ctx := context.Background()

	now := time.Now().UTC()
	b := &domain.Borrowing{BorrowDate: now.AddDate(0, 0, -5), ExpectedReturnDate: now.AddDate(0, 0, -1), BookID: book.ID, UserID: e.reader.ID}
	require.NoError(t, e.store.Borrowings.Create(ctx, b))
	e.provider.err = errors.New("down")

	_, err := e.service.Return(ctx, domain.Actor{UserID: e.reader.ID}, b.ID)
	require.ErrorIs(t, err, payment.ErrProvider)

	still, err := e.store.Borrowings.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, still.ActualReturnDate)
	after, err := e.store.Books.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Inventory)
}

func TestList_FiltersAndVisibility(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 10)
	ctx := context.Background()

	reader := domain.Actor{UserID: e.reader.ID}
	other := domain.Actor{UserID: e.other.ID}
	first, err := e.service.Create(ctx, reader, book.ID, time.Now().UTC().AddDate(0, 0, 2))
	require.NoError(t, err)
	_, err = e.service.Create(ctx, reader, book.ID, time.Now().UTC().AddDate(0, 0, 3))
	require.NoError(t, err)
	_, err = e.service.Create(ctx, other, book.ID, time.Now().UTC().AddDate(0, 0, 3))
	require.NoError(t, err)
	_, err = e.service.Return(ctx, reader, first.ID)
	require.NoError(t, err)

	type page struct {
		Data struct {
			Count   int64              `json:"count"`
			Results []domain.Borrowing `json:"results"`
		} `json:"data"`
	}
	list := func(token, query string) page {
		w := e.do(http.MethodGet, "/api/borrowings"+query, token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var p page
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
		return p
	}

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/borrowings", "", nil).Code)

	readerTok := e.token(t, e.reader)
	assert.Equal(t, int64(2), list(readerTok, "").Data.Count)
	assert.Equal(t, int64(1), list(readerTok, "?is_active=true").Data.Count)
	assert.Equal(t, int64(2), list(readerTok, fmt.Sprintf("?user_id=%d", e.other.ID)).Data.Count)

	staffTok := e.token(t, e.staff)
	assert.Equal(t, int64(3), list(staffTok, "").Data.Count)
	assert.Equal(t, int64(2), list(staffTok, "?is_active=true").Data.Count)
	byOther := list(staffTok, fmt.Sprintf("?user_id=%d", e.other.ID))
	assert.Equal(t, int64(1), byOther.Data.Count)
	assert.Equal(t, e.other.ID, byOther.Data.Results[0].UserID)

	paged := list(staffTok, "?page=2&page_size=2")
	assert.Equal(t, int64(3), paged.Data.Count)
	assert.Len(t, paged.Data.Results, 1)

	w := e.do(http.MethodGet, fmt.Sprintf("/api/borrowings/%d", first.ID), e.token(t, e.other), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodGet, fmt.Sprintf("/api/borrowings/%d", first.ID), staffTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreate_LastCopyGoesToOneBorrower(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.service.Create(ctx, domain.Actor{UserID: e.reader.ID}, book.ID, time.Now().UTC().AddDate(0, 0, 2))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrOutOfInventory)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), e.countBorrowings(t))
}

func TestHandler_IncludesBorrowerName(t *testing.T) {
	e := setupEnv(t)
	book := e.seedBook(t, 3)
	ctx := context.Background()

	e.reader.FirstName, e.reader.LastName = "Ada", "Lovelace"
	require.NoError(t, e.store.Users.Update(ctx, e.reader))
	tok := e.token(t, e.reader)

	w := e.do(http.MethodPost, "/api/borrowings", tok, gin.H{"book": book.ID, "expected_return_date": inDays(2)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"user":"Ada Lovelace"`)
	id := decode(t, w).Data.ID

	w = e.do(http.MethodGet, fmt.Sprintf("/api/borrowings/%d", id), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"Ada Lovelace"`)

	w = e.do(http.MethodGet, "/api/borrowings", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"Ada Lovelace"`)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/borrowings/%d/return", id), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"Ada Lovelace"`)

	// unnamed borrowers fall back to their email
	_, err := e.service.Create(ctx, domain.Actor{UserID: e.other.ID}, book.ID, time.Now().UTC().AddDate(0, 0, 2))
	require.NoError(t, err)
	w = e.do(http.MethodGet, "/api/borrowings", e.token(t, e.other), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":"other@example.com"`)
}

func TestHandler_FreeBookListsEmptyPayments(t *testing.T) {
	e := setupEnv(t)
	book := &domain.Book{Title: "Free", Author: "Anon", Cover: domain.CoverSoft, Inventory: 1, DailyFee: decimal.Zero}
	require.NoError(t, e.store.Books.Create(context.Background(), book))

	w := e.do(http.MethodPost, "/api/borrowings", e.token(t, e.reader), gin.H{"book": book.ID, "expected_return_date": inDays(2)})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"payments":[]`)
	assert.Equal(t, 0, e.provider.seq)
}
