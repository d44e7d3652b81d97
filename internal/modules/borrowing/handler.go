package borrowing

import (
	"errors"
	"net/http"
	"strconv"

	"library/internal/middleware"
	"library/internal/modules/payment"
	"library/internal/pkg/pagination"
	"library/internal/pkg/response"
	"library/internal/pkg/validator"
	"library/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	service *Service
	logger  zerolog.Logger
}

func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes expects a group that already runs JWTAuth.
func (h *Handler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/borrowings", h.List)
	protected.POST("/borrowings", h.Create)
	protected.GET("/borrowings/:id", h.Get)
	protected.POST("/borrowings/:id/return", h.Return)
}

// List godoc
// @Summary      List borrowings
// @Description  Newest first. Readers see only their own borrowings; staff may filter by user_id.
// @Tags         Borrowings
// @Security     BearerAuth
// @Param        is_active query bool false "Only borrowings not yet returned"
// @Param        user_id   query int  false "Filter by user (staff only)"
// @Param        page      query int  false "Page number"
// @Param        page_size query int  false "Page size (max 100)"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Router       /borrowings [get]
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

	var f ListFilter
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "is_active must be true or false")
			return
		}
		f.ActiveOnly = active
	}
	if raw := c.Query("user_id"); raw != "" && actor.IsStaff {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "user_id must be a positive integer")
			return
		}
		f.UserID = &userID
	}

	rows, total, err := h.service.List(c.Request.Context(), actor, f, repository.Page{Limit: params.Limit(), Offset: params.Offset()})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paginated(c, params.Page, params.PageSize, total, rows)
}

// Get godoc
// @Summary      Borrowing detail
// @Tags         Borrowings
// @Security     BearerAuth
// @Param        id path int true "Borrowing ID"
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /borrowings/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	b, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// Create godoc
// @Summary      Borrow a book
// @Description  Takes one copy off the shelf and opens a checkout session for the borrowing fee.
// @Tags         Borrowings
// @Security     BearerAuth
// @Param        request body CreateBorrowingRequest true "Book ID and expected return date"
// @Success      201 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      502 {object} map[string]interface{}
// @Router       /borrowings [post]
func (h *Handler) Create(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req CreateBorrowingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", validator.Message(errs), errs)
		return
	}
	expected, err := req.ParseExpectedReturnDate()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	b, err := h.service.Create(c.Request.Context(), actor, req.Book, expected)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

// Return godoc
// @Summary      Return a book
// @Description  Closes the borrowing and puts the copy back. A late return opens a fine checkout at twice the daily fee.
// @Tags         Borrowings
// @Security     BearerAuth
// @Param        id path int true "Borrowing ID"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /borrowings/{id}/return [post]
func (h *Handler) Return(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	b, err := h.service.Return(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Borrowing not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Borrowing not found")
	case errors.Is(err, ErrBookNotFound):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Book not found")
	case errors.Is(err, ErrOutOfInventory):
		response.Error(c, http.StatusBadRequest, "OUT_OF_INVENTORY", "This book is out of inventory")
	case errors.Is(err, ErrAlreadyReturned):
		response.Error(c, http.StatusBadRequest, "ALREADY_RETURNED", "This book is already returned")
	case errors.Is(err, ErrInvalidReturnDate):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Expected return date must be after the borrow date")
	case errors.Is(err, payment.ErrProvider):
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("checkout session failed, borrowing rolled back")
		response.Error(c, http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Payment provider is unavailable")
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("borrowing request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}
