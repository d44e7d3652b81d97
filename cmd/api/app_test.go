package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library/internal/config"
	"library/internal/database"
	"library/internal/domain"
	"library/internal/modules/payment"
)

type fakeCheckout struct {
	mu       sync.Mutex
	n        int
	sessions map[string]*payment.Session
}

func (f *fakeCheckout) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	s := &payment.Session{
		ID:            fmt.Sprintf("cs_test_%d", f.n),
		URL:           fmt.Sprintf("https://checkout.test/%d", f.n),
		PaymentStatus: payment.SessionUnpaid,
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     time.Now().UTC().Add(payment.SessionLifetime),
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeCheckout) GetSession(_ context.Context, id string) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeCheckout) pay(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].PaymentStatus = payment.SessionPaid
}

type testSuite struct {
	app      *app
	db       *gorm.DB
	checkout *fakeCheckout
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func setupSuite(t *testing.T) *testSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:api_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		AppEnv:          "test",
		JWTSecret:       "test_secret_key_32_characters_min",
		JWTAccessTTL:    15 * time.Minute,
		JWTRefreshTTL:   24 * time.Hour,
		BackendBaseURL:  "http://localhost:8080",
		TokenRateLimit:  600,
		TokenRateBurst:  100,
		NotifyQueueSize: 10,
	}
	checkout := &fakeCheckout{sessions: map[string]*payment.Session{}}
	a := newApp(cfg, db, zerolog.Nop(), checkout, nil)
	a.start()
	t.Cleanup(a.stop)

	return &testSuite{app: a, db: db, checkout: checkout}
}

func (s *testSuite) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.handler.ServeHTTP(w, req)

	var env envelope
	if w.Code != http.StatusNoContent && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

// registerAndLogin creates an account over HTTP and returns its access token.
func (s *testSuite) registerAndLogin(t *testing.T, email string, staff bool) string {
	t.Helper()
	w, _ := s.do(t, http.MethodPost, "/api/users", gin.H{"email": email, "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	if staff {
		require.NoError(t, s.db.Model(&domain.User{}).Where("email = ?", email).Update("is_staff", true).Error)
	}

	w, env := s.do(t, http.MethodPost, "/api/users/token", gin.H{"email": email, "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pair struct {
		Access string `json:"access"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	return pair.Access
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupSuite(t)

	w, env := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, _ = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
	assert.Contains(t, w.Body.String(), "library_feed_clients 0")
}

func TestFlow_BorrowPayReturn(t *testing.T) {
	s := setupSuite(t)
	admin := s.registerAndLogin(t, "admin@test.com", true)
	reader := s.registerAndLogin(t, "reader@test.com", false)

	var bookID int64
	t.Run("staff adds a book", func(t *testing.T) {
		w, _ := s.do(t, http.MethodPost, "/api/books", gin.H{
			"title": "Dune", "author": "Frank Herbert", "cover": "HARD", "inventory": 1, "daily_fee": "1.25",
		}, reader)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w, env := s.do(t, http.MethodPost, "/api/books", gin.H{
			"title": "Dune", "author": "Frank Herbert", "cover": "HARD", "inventory": 1, "daily_fee": "1.25",
		}, admin)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var b domain.Book
		require.NoError(t, json.Unmarshal(env.Data, &b))
		bookID = b.ID
	})

	var borrowing domain.Borrowing
	t.Run("reader borrows it", func(t *testing.T) {
		due := time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02")
		w, env := s.do(t, http.MethodPost, "/api/borrowings", gin.H{"book": bookID, "expected_return_date": due}, reader)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, &borrowing))

		require.Len(t, borrowing.Payments, 1)
		p := borrowing.Payments[0]
		assert.Equal(t, domain.PaymentPending, p.Status)
		assert.Equal(t, "2.5", p.MoneyToPay.String())
		assert.NotEmpty(t, p.SessionURL)

		w, env = s.do(t, http.MethodPost, "/api/borrowings", gin.H{"book": bookID, "expected_return_date": due}, reader)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "OUT_OF_INVENTORY", env.Error.Code)
	})

	t.Run("checkout success", func(t *testing.T) {
		sessionID := borrowing.Payments[0].SessionID

		w, env := s.do(t, http.MethodGet, "/api/payments/success?session_id="+sessionID, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "PAYMENT_NOT_SUCCESS", env.Error.Code)

		s.checkout.pay(sessionID)
		w, env = s.do(t, http.MethodGet, "/api/payments/success?session_id="+sessionID, nil, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var p domain.Payment
		require.NoError(t, json.Unmarshal(env.Data, &p))
		assert.Equal(t, domain.PaymentPaid, p.Status)
	})

	t.Run("payments are private to their owner", func(t *testing.T) {
		other := s.registerAndLogin(t, "other@test.com", false)
		id := borrowing.Payments[0].ID

		w, _ := s.do(t, http.MethodGet, fmt.Sprintf("/api/payments/%d", id), nil, other)
		assert.Equal(t, http.StatusNotFound, w.Code)
		w, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/payments/%d", id), nil, reader)
		assert.Equal(t, http.StatusOK, w.Code)
		w, _ = s.do(t, http.MethodGet, fmt.Sprintf("/api/payments/%d", id), nil, admin)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("reader returns it", func(t *testing.T) {
		path := fmt.Sprintf("/api/borrowings/%d/return", borrowing.ID)
		w, env := s.do(t, http.MethodPost, path, nil, reader)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var returned domain.Borrowing
		require.NoError(t, json.Unmarshal(env.Data, &returned))
		assert.NotNil(t, returned.ActualReturnDate)
		assert.Len(t, returned.Payments, 1)

		w, env = s.do(t, http.MethodPost, path, nil, reader)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "ALREADY_RETURNED", env.Error.Code)

		w, env = s.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", bookID), nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		var b domain.Book
		require.NoError(t, json.Unmarshal(env.Data, &b))
		assert.Equal(t, 1, b.Inventory)
	})

	t.Run("active filter", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/borrowings?is_active=true", nil, reader)
		require.Equal(t, http.StatusOK, w.Code)
		var page struct {
			Count int64 `json:"count"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, int64(0), page.Count)
	})
}

func TestFlow_TrailingSlashRoutes(t *testing.T) {
	s := setupSuite(t)

	w, _ := s.do(t, http.MethodPost, "/api/users/", gin.H{"email": "slash@test.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env := s.do(t, http.MethodPost, "/api/users/token/", gin.H{"email": "slash@test.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pair struct {
		Access string `json:"access"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pair))

	w, _ = s.do(t, http.MethodGet, "/api/borrowings/", nil, pair.Access)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/users/me/", nil, pair.Access)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/books/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFlow_WebhookDisabledWithoutSecret(t *testing.T) {
	s := setupSuite(t)
	w, env := s.do(t, http.MethodPost, "/api/payments/webhook", gin.H{"type": "checkout.session.completed"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "WEBHOOK_DISABLED", env.Error.Code)
}
