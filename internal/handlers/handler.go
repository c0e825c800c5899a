package handlers

import (
	"net/http"

	_ "authgate/docs"
	"authgate/internal/logger"
	"authgate/internal/service"
	"authgate/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Options configures routing.
type Options struct {
	AuthPrefix     string
	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For. Empty means the socket peer is the client.
	TrustedProxies []string
}

// Handler wires HTTP layer to services, the session marker and logging.
type Handler struct {
	services *service.Service
	sessions session.Manager
	log      *logger.Logger
	opts     Options
}

// NewHandler constructs a new HTTP handler with dependencies. A nil log discards output.
func NewHandler(services *service.Service, sessions session.Manager, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if opts.AuthPrefix == "" {
		opts.AuthPrefix = "/api/auth"
	}
	return &Handler{services: services, sessions: sessions, log: log, opts: opts}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(h.opts.TrustedProxies); err != nil {
		h.log.Errorw("invalid trusted proxies, ignoring forwarded headers", "err", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), h.requestID, h.accessLog)

	if len(h.opts.AllowedOrigins) > 0 {
		router.Use(cors.New(h.corsConfig()))
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)

	return router
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = h.opts.AllowedOrigins
	cfg.AllowCredentials = true
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	cfg.ExposeHeaders = []string{requestIDHeader, "Retry-After"}
	return cfg
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group(h.opts.AuthPrefix, h.sessions.Middleware()...)
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.GET("/logout", h.logout)
		auth.GET("/me", h.requireSession, h.me)
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
