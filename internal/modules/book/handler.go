package book

import (
	"errors"
	"net/http"
	"strconv"

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

// RegisterRoutes mounts reads on public and writes on staff, which must
// already run JWTAuth and StaffOnly.
func (h *Handler) RegisterRoutes(public, staff *gin.RouterGroup) {
	if public != nil {
		public.GET("/books", h.List)
		public.GET("/books/:id", h.Get)
	}
	if staff != nil {
		staff.POST("/books", h.Create)
		staff.PUT("/books/:id", h.Replace)
		staff.PATCH("/books/:id", h.Patch)
		staff.DELETE("/books/:id", h.Delete)
	}
}

// List godoc
// @Summary      List books
// @Tags         Books
// @Param        page      query int false "Page number"
// @Param        page_size query int false "Page size (max 100)"
// @Success      200 {object} map[string]interface{}
// @Router       /books [get]
func (h *Handler) List(c *gin.Context) {
	params, err := pagination.FromQuery(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid page parameters")
		return
	}

	books, total, err := h.service.List(c.Request.Context(), repository.Page{Limit: params.Limit(), Offset: params.Offset()})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Paginated(c, params.Page, params.PageSize, total, books)
}

// Get godoc
// @Summary      Book detail
// @Tags         Books
// @Param        id path int true "Book ID"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /books/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// Create godoc
// @Summary      Add a book
// @Tags         Books
// @Security     BearerAuth
// @Param        request body BookRequest true "Book"
// @Success      201 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      403 {object} map[string]interface{}
// @Router       /books [post]
func (h *Handler) Create(c *gin.Context) {
	var req BookRequest
	if !bind(c, &req) {
		return
	}
	b, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b)
}

// Replace godoc
// @Summary      Update a book
// @Tags         Books
// @Security     BearerAuth
// @Param        id      path int         true "Book ID"
// @Param        request body BookRequest true "Book"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /books/{id} [put]
func (h *Handler) Replace(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req BookRequest
	if !bind(c, &req) {
		return
	}
	b, err := h.service.Replace(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// Patch godoc
// @Summary      Partially update a book
// @Tags         Books
// @Security     BearerAuth
// @Param        id      path int              true "Book ID"
// @Param        request body PatchBookRequest true "Fields to change"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /books/{id} [patch]
func (h *Handler) Patch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req PatchBookRequest
	if !bind(c, &req) {
		return
	}
	b, err := h.service.Patch(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, b)
}

// Delete godoc
// @Summary      Delete a book
// @Description  Also deletes the book's borrowings and their payments.
// @Tags         Books
// @Security     BearerAuth
// @Param        id path int true "Book ID"
// @Success      204
// @Failure      404 {object} map[string]interface{}
// @Router       /books/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", validator.Message(errs), errs)
		return false
	}
	return true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Book not found")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Book not found")
		return
	}
	h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("book request failed")
	response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
}
