package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"library/internal/domain"
	"library/internal/pkg/metrics"
	"library/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	currency = "usd"

	eventSessionCompleted    = "checkout.session.completed"
	eventAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"

	cancelledMessage   = "Your payment has been cancelled. You can pay later, but please note that the session is available for the next %s."
	expiredMessage     = "Your payment has been cancelled. The payment session has expired."
	alreadyPaidMessage = "Your payment has been already paid."
)

type Service struct {
	store      *repository.Store
	provider   CheckoutProvider
	webhooks   WebhookParser
	successURL string
	cancelURL  string
	logger     zerolog.Logger
	metrics    *metrics.Collector
	now        func() time.Time
}

// NewService wires the checkout provider. webhooks may be nil, in which case
// the webhook endpoint answers ErrWebhookDisabled.
func NewService(store *repository.Store, provider CheckoutProvider, webhooks WebhookParser, baseURL string, logger zerolog.Logger, m *metrics.Collector) *Service {
	base := strings.TrimRight(baseURL, "/")
	return &Service{
		store:      store,
		provider:   provider,
		webhooks:   webhooks,
		successURL: base + "/api/payments/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:  base + "/api/payments/cancel?session_id={CHECKOUT_SESSION_ID}",
		logger:     logger,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// StartCheckout opens a checkout session for days of borrowing and stores a
// PENDING payment through tx. A zero amount needs no checkout and yields nil.
// Provider failures are wrapped in ErrProvider so the caller's transaction
// rolls back.
func (s *Service) StartCheckout(ctx context.Context, tx *repository.Store, b *domain.Borrowing, book *domain.Book, typ domain.PaymentType, days int) (*domain.Payment, error) {
	amount := domain.AmountDue(book.DailyFee, days, typ)
	if !amount.IsPositive() {
		return nil, nil
	}

	session, err := s.provider.CreateSession(ctx, SessionRequest{
		AmountCents:    domain.AmountInCents(amount),
		Currency:       currency,
		ProductName:    productName(book.Title, typ, days),
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
		IdempotencyKey: uuid.NewString(),
		Metadata: map[string]string{
			"borrowing_id": fmt.Sprint(b.ID),
			"payment_type": string(typ),
		},
	})
	if err != nil {
		s.countSession(typ, "error")
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	s.countSession(typ, "ok")

	p := &domain.Payment{
		Status:      domain.PaymentPending,
		Type:        typ,
		BorrowingID: b.ID,
		SessionURL:  session.URL,
		SessionID:   session.ID,
		MoneyToPay:  amount,
	}
	if err := tx.Payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, actor domain.Actor, page repository.Page) ([]domain.Payment, int64, error) {
	var f repository.PaymentFilter
	if !actor.IsStaff {
		f.UserID = &actor.UserID
	}
	rows, total, err := s.store.Payments.List(ctx, f, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return rows, total, nil
}

// Get hides payments of other users behind ErrNotFound.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Payment, error) {
	p, err := s.store.Payments.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if p.Borrowing == nil || !actor.CanSee(p.Borrowing.UserID) {
		return nil, ErrNotFound
	}
	return p, nil
}

// ConfirmSuccess asks the provider about the session and marks the payment
// PAID when the provider reports it paid.
func (s *Service) ConfirmSuccess(ctx context.Context, sessionID string) (*domain.Payment, error) {
	p, session, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PaymentStatus != SessionPaid {
		return nil, ErrPaymentNotSuccess
	}
	return s.markPaid(ctx, p, "success")
}

type CancelResult struct {
	Message string          `json:"message"`
	Payment *domain.Payment `json:"payment"`
}

// Cancel reports how long an unpaid session stays open, or that it was paid.
func (s *Service) Cancel(ctx context.Context, sessionID string) (*CancelResult, error) {
	p, session, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.PaymentStatus != SessionUnpaid {
		return &CancelResult{Message: alreadyPaidMessage, Payment: p}, nil
	}

	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() {
		created := session.CreatedAt
		if created.IsZero() {
			created = p.CreatedAt
		}
		expiresAt = created.Add(SessionLifetime)
	}
	remaining := expiresAt.Sub(s.now())
	if remaining <= 0 {
		return &CancelResult{Message: expiredMessage, Payment: p}, nil
	}
	return &CancelResult{Message: fmt.Sprintf(cancelledMessage, formatRemaining(remaining)), Payment: p}, nil
}

// HandleWebhook verifies a provider callback and marks the matching payment
// PAID. Events for unknown sessions are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhooks == nil {
		return ErrWebhookDisabled
	}
	event, err := s.webhooks.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case eventSessionCompleted, eventAsyncPaymentSuccess:
	default:
		s.logger.Debug().Str("event", event.Type).Msg("webhook event ignored")
		return nil
	}
	if event.PaymentStatus != SessionPaid || event.SessionID == "" {
		return nil
	}

	p, err := s.store.Payments.GetBySessionID(ctx, event.SessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			s.logger.Warn().Str("session_id", event.SessionID).Msg("webhook for unknown checkout session")
			return nil
		}
		return fmt.Errorf("get payment by session: %w", err)
	}
	_, err = s.markPaid(ctx, p, "webhook")
	return err
}

func (s *Service) lookup(ctx context.Context, sessionID string) (*domain.Payment, *Session, error) {
	if sessionID == "" {
		return nil, nil, ErrSessionIDRequired
	}

	p, err := s.store.Payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("get payment by session: %w", err)
	}

	session, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return p, session, nil
}

func (s *Service) markPaid(ctx context.Context, p *domain.Payment, source string) (*domain.Payment, error) {
	paidAt := s.now()
	changed, err := s.store.Payments.MarkPaid(ctx, p.ID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("mark payment paid: %w", err)
	}
	if changed {
		p.Status = domain.PaymentPaid
		p.PaidAt = &paidAt
		if s.metrics != nil {
			s.metrics.PaymentsPaid.WithLabelValues(source).Inc()
		}
		s.logger.Info().Int64("payment_id", p.ID).Str("source", source).Msg("payment marked paid")
		return p, nil
	}

	fresh, err := s.store.Payments.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}
	return fresh, nil
}

func (s *Service) countSession(typ domain.PaymentType, result string) {
	if s.metrics != nil {
		s.metrics.CheckoutSessions.WithLabelValues(string(typ), result).Inc()
	}
}

func productName(title string, typ domain.PaymentType, days int) string {
	if typ == domain.PaymentTypeFine {
		return fmt.Sprintf("%s overdue fine for %d days", title, days)
	}
	return fmt.Sprintf("%s borrowing for %d days", title, days)
}

// formatRemaining renders a duration as H:MM:SS, dropping partial seconds.
func formatRemaining(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%d:%02d:%02d", h, m, d/time.Second)
}
