package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/estate/service"
)

// RouterConfig holds everything the router mounts
type RouterConfig struct {
	AuthService *service.AuthService
	Properties  PropertyReader
	// Settlement and Admins enable the admin routes when both are set
	Settlement          Settler
	Admins              []string
	DefaultPaymentToken string
	Metrics             http.Handler
	Logger              *slog.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger.With("component", "http")))

	authHandlers := NewAuthHandlers(cfg.AuthService)
	propertyHandlers := NewPropertyHandlers(cfg.Properties, cfg.Settlement, cfg.DefaultPaymentToken)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/crypto/request-challenge", authHandlers.RequestChallenge)
		auth.POST("/crypto/verify-signature", authHandlers.VerifySignature)
		auth.GET("/status", AuthMiddleware(cfg.AuthService), authHandlers.Status)
	}

	if cfg.Properties != nil {
		properties := api.Group("/properties/onchain")
		{
			properties.GET("", propertyHandlers.List)
			properties.GET("/:address", propertyHandlers.Details)
		}
	}

	if cfg.Settlement != nil && len(cfg.Admins) > 0 {
		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(cfg.AuthService), AdminOnly(cfg.Admins))
		{
			admin.POST("/properties", propertyHandlers.Deploy)
			admin.POST("/properties/:address/yield", propertyHandlers.DepositYield)
		}
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	return router
}
