package auth

import (
	"errors"
	"net/http"

	"library/internal/middleware"
	"library/internal/pkg/response"
	"library/internal/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service *Service
	logger  zerolog.Logger
}

func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublicRoutes mounts registration and the token endpoints. limit,
// when set, guards the token endpoints.
func (h *Handler) RegisterPublicRoutes(public *gin.RouterGroup, limit gin.HandlerFunc) {
	tokenHandlers := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		if limit == nil {
			return []gin.HandlerFunc{hf}
		}
		return []gin.HandlerFunc{limit, hf}
	}

	public.POST("/users", h.Register)
	public.POST("/users/token", tokenHandlers(h.Token)...)
	public.POST("/users/token/refresh", tokenHandlers(h.RefreshToken)...)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.GET("/users/me", h.GetMe)
	protected.PUT("/users/me", h.ReplaceMe)
	protected.PATCH("/users/me", h.PatchMe)
}

// Register godoc
// @Summary      Register a reader
// @Tags         Users
// @Param        request body RegisterRequest true "Email, password and optional names"
// @Success      201 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Router       /users [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// Token godoc
// @Summary      Obtain a token pair
// @Tags         Users
// @Param        request body LoginRequest true "Credentials"
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      429 {object} map[string]interface{}
// @Router       /users/token [post]
func (h *Handler) Token(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	pair, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, pair)
}

// RefreshToken godoc
// @Summary      Refresh the access token
// @Tags         Users
// @Param        request body RefreshRequest true "Refresh token"
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Router       /users/token/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if !bind(c, &req) {
		return
	}

	access, err := h.service.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"access": access})
}

// GetMe godoc
// @Summary      Current user
// @Tags         Users
// @Security     BearerAuth
// @Success      200 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Router       /users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	user, err := h.service.GetCurrentUser(c.Request.Context(), actor.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// ReplaceMe godoc
// @Summary      Replace the current user's profile
// @Tags         Users
// @Security     BearerAuth
// @Param        request body UpdateMeRequest true "Profile; email and password required"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Router       /users/me [put]
func (h *Handler) ReplaceMe(c *gin.Context) {
	h.updateMe(c, true)
}

// PatchMe godoc
// @Summary      Update part of the current user's profile
// @Tags         Users
// @Security     BearerAuth
// @Param        request body UpdateMeRequest true "Fields to change"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Router       /users/me [patch]
func (h *Handler) PatchMe(c *gin.Context) {
	h.updateMe(c, false)
}

func (h *Handler) updateMe(c *gin.Context, full bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req UpdateMeRequest
	if !bind(c, &req) {
		return
	}
	if full {
		if missing := req.requireAll(); missing != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", validator.Message(missing), missing)
			return
		}
	}

	user, err := h.service.UpdateCurrentUser(c.Request.Context(), actor.UserID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
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

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmailAlreadyExists):
		response.Error(c, http.StatusBadRequest, "EMAIL_EXISTS", "User with this email already exists")
	case errors.Is(err, ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "No active account found with the given credentials")
	case errors.Is(err, ErrInvalidRefreshToken):
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired")
	case errors.Is(err, ErrUserNotFound):
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not found")
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("auth request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}
