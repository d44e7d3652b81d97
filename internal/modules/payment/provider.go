package payment

import (
	"context"
	"errors"
	"time"
)

type SessionStatus string

const (
	SessionPaid   SessionStatus = "paid"
	SessionUnpaid SessionStatus = "unpaid"
)

// SessionLifetime is how long a checkout session accepts payment.
const SessionLifetime = 24 * time.Hour

var ErrSessionNotFound = errors.New("checkout session not found")

type SessionRequest struct {
	AmountCents    int64
	Currency       string
	ProductName    string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Metadata       map[string]string
}

type Session struct {
	ID            string
	URL           string
	PaymentStatus SessionStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// CheckoutProvider creates and looks up hosted checkout sessions.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
}

type WebhookEvent struct {
	Type          string
	SessionID     string
	PaymentStatus SessionStatus
}

// WebhookParser verifies a signed provider callback and decodes it.
type WebhookParser interface {
	ParseWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
