package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"library/internal/middleware"
	"library/internal/pkg/pagination"
	"library/internal/pkg/response"
	"library/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxWebhookBody = 64 << 10

type Handler struct {
	service *Service
	logger  zerolog.Logger
}

func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the provider callbacks on public and the payment
// reads on protected. Either group may be nil.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	if public != nil {
		public.GET("/payments/success", h.Success)
		public.GET("/payments/cancel", h.Cancel)
		public.POST("/payments/webhook", h.Webhook)
	}
	if protected != nil {
		protected.GET("/payments", h.List)
		protected.GET("/payments/:id", h.Get)
	}
}

// List godoc
// @Summary      List payments
// @Description  Staff see every payment, readers only the payments of their own borrowings.
// @Tags         Payments
// @Security     BearerAuth
// @Param        page      query int false "Page number"
// @Param        page_size query int false "Page size (max 100)"
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Router       /payments [get]
func (h *Handler) List(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	params, err := pagination.FromQuery(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid page parameters")
		return
	}

	rows, total, err := h.service.List(c.Request.Context(), actor, repository.Page{Limit: params.Limit(), Offset: params.Offset()})
	if err != nil {
		h.internalError(c, err, "Failed to list payments")
		return
	}
	response.Paginated(c, params.Page, params.PageSize, total, rows)
}

// Get godoc
// @Summary      Payment detail
// @Tags         Payments
// @Security     BearerAuth
// @Param        id path int true "Payment ID"
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /payments/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Payment not found")
		return
	}

	p, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// Success godoc
// @Summary      Checkout success redirect
// @Description  Confirms the session with the provider and marks the payment PAID.
// @Tags         Payments
// @Param        session_id query string true "Checkout session ID"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /payments/success [get]
func (h *Handler) Success(c *gin.Context) {
	p, err := h.service.ConfirmSuccess(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, p)
}

// Cancel godoc
// @Summary      Checkout cancel redirect
// @Tags         Payments
// @Param        session_id query string true "Checkout session ID"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /payments/cancel [get]
func (h *Handler) Cancel(c *gin.Context) {
	res, err := h.service.Cancel(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// Webhook godoc
// @Summary      Provider webhook
// @Description  Receives signed checkout events. Completed sessions mark their payment PAID.
// @Tags         Payments
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Router       /payments/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read request body")
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"received": true})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionIDRequired):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "session_id is required")
	case errors.Is(err, ErrPaymentNotSuccess):
		response.Error(c, http.StatusBadRequest, "PAYMENT_NOT_SUCCESS", "Payment is not success")
	case errors.Is(err, ErrInvalidSignature):
		response.Error(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Invalid webhook signature")
	case errors.Is(err, ErrWebhookDisabled):
		response.Error(c, http.StatusServiceUnavailable, "WEBHOOK_DISABLED", "Webhook is not configured")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Payment not found")
	case errors.Is(err, ErrProvider):
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("payment provider call failed")
		response.Error(c, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Payment provider is unavailable")
	default:
		h.internalError(c, err, "Internal error")
	}
}

func (h *Handler) internalError(c *gin.Context, err error, msg string) {
	h.logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", msg)
}
