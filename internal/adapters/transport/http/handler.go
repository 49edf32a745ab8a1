package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nordfeed/identity-service/internal/adapters/transport/http/dto"
	"github.com/nordfeed/identity-service/internal/adapters/transport/http/middleware"
	"github.com/nordfeed/identity-service/internal/app/identity/service"
	customErrors "github.com/nordfeed/identity-service/internal/domain/identity/errors"
	"github.com/nordfeed/identity-service/internal/infra/config"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"

	// "Bearer " — the scheme prefix stripped off the Authorization header
	bearerPrefixLen = 7

	refreshPath = "/refresh"
)

type Handler struct {
	svc service.Service
	cfg *config.Config
	log *zap.Logger
}

func NewRouter(svc service.Service, cfg *config.Config, log *zap.Logger) *gin.Engine {
	h := &Handler{svc: svc, cfg: cfg, log: log}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.NewRateLimitPerIP(50, 100, 10_000, time.Hour))

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.POST("/invite", h.invite)
	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST(refreshPath, h.refresh)

	// unimplemented flows, routed so clients get a deliberate 501 instead of 404
	router.POST("/password-reset", notImplemented)
	router.PUT("/profile", notImplemented)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (h *Handler) invite(c *gin.Context) {
	var body dto.InviteDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.svc.Invite(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "invite sent",
		"inviteToken": inv.Token,
	})
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if auth := c.GetHeader("Authorization"); len(auth) > bearerPrefixLen {
		body.InviteToken = auth[bearerPrefixLen:]
	}

	if _, err := h.svc.Register(c.Request.Context(), body); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user created"})
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.svc.Login(c.Request.Context(), body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookie, pair.AccessToken,
		int(pair.AccessTTL.Seconds()), "/", h.cfg.CookieDomain, true, true)
	// scoped to the refresh endpoint so it rides along nowhere else
	c.SetCookie(refreshCookie, pair.RefreshToken,
		int(pair.RefreshTTL.Seconds()), refreshPath, h.cfg.CookieDomain, true, true)

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"userId":       pair.UserID.String(),
		"expiresIn":    int(pair.AccessTTL.Seconds()),
	})
}

func (h *Handler) refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	grant, err := h.svc.Refresh(c.Request.Context(), dto.RefreshDTO{RefreshToken: raw})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookie, grant.AccessToken,
		int(grant.AccessTTL.Seconds()), "/", h.cfg.CookieDomain, true, true)

	c.JSON(http.StatusOK, gin.H{
		"message":   "access token refreshed",
		"expiresIn": int(grant.AccessTTL.Seconds()),
	})
}

func notImplemented(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "not implemented"})
}

// handleError maps workflow failures onto the HTTP contract. Every token
// failure collapses to the same client-visible message; detail stays in logs.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case customErrors.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case customErrors.IsInvalidCredentials(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case customErrors.IsInvalidToken(err), customErrors.IsTokenExpired(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case customErrors.IsNotification(err):
		h.log.Error("invite delivery failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "email error"})
	case customErrors.IsStorage(err), customErrors.IsAlreadyExists(err):
		h.log.Error("storage failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
	default:
		h.log.Error("unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
