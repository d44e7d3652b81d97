package notification

import (
	"net/http"
	"time"

	"library/internal/pkg/jwt"
	"library/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler serves the live notification feed for staff.
type WSHandler struct {
	hub    *Hub
	tokens *jwt.Service
	logger zerolog.Logger
}

func NewWSHandler(hub *Hub, tokens *jwt.Service, logger zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, tokens: tokens, logger: logger}
}

func (h *WSHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications/ws", h.HandleWebSocket)
}

// HandleWebSocket godoc
// @Summary      Staff notification feed
// @Description  Upgrades to a websocket that receives every library notification. Browsers cannot set headers on websocket requests, so the access token goes in the query string.
// @Tags         Notifications
// @Param        token query string true "Access token"
// @Success      101
// @Failure      401 {object} map[string]interface{}
// @Failure      403 {object} map[string]interface{}
// @Router       /notifications/ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "Token is required. Use ?token=ACCESS_TOKEN")
		return
	}

	claims, err := h.tokens.ValidateToken(token, jwt.TokenTypeAccess)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}
	if !claims.IsStaff {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID := claims.UserID
	h.hub.Register(userID, conn)
	h.logger.Info().Int64("user_id", userID).Msg("staff connected to notification feed")

	done := make(chan struct{})
	defer func() {
		close(done)
		h.hub.Unregister(userID, conn)
		h.logger.Info().Int64("user_id", userID).Msg("staff disconnected from notification feed")
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(userID, done)
	h.readLoop(conn, userID)
}

func (h *WSHandler) pingLoop(userID int64, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.hub.Ping(userID); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop discards client frames; it only exists to observe close and pong frames.
func (h *WSHandler) readLoop(conn *websocket.Conn, userID int64) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Int64("user_id", userID).Msg("websocket read error")
			}
			return
		}
	}
}
