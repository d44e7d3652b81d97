package payment

import "errors"

var (
	ErrNotFound          = errors.New("payment not found")
	ErrSessionIDRequired = errors.New("session_id is required")
	ErrPaymentNotSuccess = errors.New("payment is not success")
	ErrProvider          = errors.New("payment provider error")
	ErrWebhookDisabled   = errors.New("webhook verification is not configured")
)
