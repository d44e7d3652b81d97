package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"library/internal/config"
	"library/internal/middleware"
	"library/internal/modules/auth"
	"library/internal/modules/book"
	"library/internal/modules/borrowing"
	"library/internal/modules/notification"
	"library/internal/modules/payment"
	jwtsvc "library/internal/pkg/jwt"
	"library/internal/pkg/metrics"
	"library/internal/pkg/response"
	"library/internal/repository"
)

// app holds everything run needs to serve and later shut down.
type app struct {
	handler    http.Handler
	store      *repository.Store
	hub        *notification.Hub
	dispatcher *notification.Dispatcher
	metrics    *metrics.Collector
}

func newApp(cfg *config.Config, db *gorm.DB, logger zerolog.Logger, checkout payment.CheckoutProvider, webhooks payment.WebhookParser) *app {
	store := repository.NewStore(db)
	m := metrics.New()
	tokens := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	// notifications
	hub := notification.NewHub()
	m.TrackFeedClients(hub.OnlineCount)
	channels := []notification.Channel{{Name: "websocket", Sender: hub}}
	if cfg.TelegramEnabled() {
		channels = append(channels, notification.Channel{
			Name:   "telegram",
			Sender: notification.NewTelegramClient(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramChatID, nil),
		})
	} else {
		logger.Warn().Msg("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, telegram notifications disabled")
	}
	dispatcher := notification.NewDispatcher(cfg.NotifyQueueSize, logger.With().Str("component", "notify").Logger(), m, channels...)

	paymentService := payment.NewService(store, checkout, webhooks, cfg.BackendBaseURL, logger, m)

	authHandler := auth.NewHandler(auth.NewService(store.Users, tokens, logger), logger)
	bookHandler := book.NewHandler(book.NewService(store.Books), logger)
	borrowingHandler := borrowing.NewHandler(borrowing.NewService(store, paymentService, dispatcher, logger, m), logger)
	paymentHandler := payment.NewHandler(paymentService, logger)
	wsHandler := notification.NewWSHandler(hub, tokens, logger)

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ErrorLogger(logger),
		middleware.Metrics(m),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(tokens))
	staff := api.Group("")
	staff.Use(middleware.JWTAuth(tokens), middleware.StaffOnly())

	tokenLimiter := middleware.NewIPRateLimiter(cfg.TokenRateLimit, cfg.TokenRateBurst, m)
	authHandler.RegisterPublicRoutes(api, tokenLimiter.Middleware())
	authHandler.RegisterProtectedRoutes(protected)
	bookHandler.RegisterRoutes(api, staff)
	borrowingHandler.RegisterRoutes(protected)
	paymentHandler.RegisterRoutes(api, protected)
	wsHandler.RegisterRoutes(api)

	return &app{
		handler:    middleware.StripTrailingSlash(r),
		store:      store,
		hub:        hub,
		dispatcher: dispatcher,
		metrics:    m,
	}
}

func (a *app) start() {
	a.dispatcher.Start()
}

// stop drains queued notifications before closing websocket clients.
func (a *app) stop() {
	a.dispatcher.Stop()
	a.hub.Close()
}
