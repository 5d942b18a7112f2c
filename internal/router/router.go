package router

import (
	"fmt"
	"strings"

	"github.com/checkout-next/internal/cache"
	"github.com/checkout-next/internal/config"
	publichandlers "github.com/checkout-next/internal/http/handlers/public"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "co"
	}
	promoRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:promo", redisPrefix),
		WindowSeconds: cfg.Checkout.PromoRateLimit.WindowSeconds,
		MaxRequests:   cfg.Checkout.PromoRateLimit.MaxAttempts,
	}
	promoLimit := RateLimitMiddleware(cache.Client(), promoRule, KeyByIPAndParam("token"))

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 结算接口：游客可用，携带用户令牌时绑定用户
		checkouts := apiV1.Group("/checkouts")
		checkouts.Use(OptionalUserJWTMiddleware(cfg.UserJWT.SecretKey, cfg.UserJWT.Required))
		{
			checkouts.POST("", publicHandler.CreateCheckout)
			checkouts.GET("/:token", publicHandler.GetCheckout)
			checkouts.PUT("/:token/email", publicHandler.UpdateCheckoutEmail)
			checkouts.POST("/:token/lines", publicHandler.UpdateCheckoutLines)
			checkouts.POST("/:token/promo-codes", promoLimit, publicHandler.AddPromoCode)
			checkouts.POST("/:token/promo-codes/remove", publicHandler.RemovePromoCode)
			checkouts.PUT("/:token/shipping-address", publicHandler.UpdateShippingAddress)
			checkouts.PUT("/:token/delivery-method", publicHandler.UpdateDeliveryMethod)
			checkouts.GET("/:token/shipping-methods", publicHandler.ListShippingMethods)
			checkouts.POST("/:token/complete", publicHandler.CompleteCheckout)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
