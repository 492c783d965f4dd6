package routes

import (
	"net/http"
	"time"

	"mia/handlers"
	"mia/middleware"
	"mia/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterAuthRoutes registers sign up, sign in and client session endpoints.
func RegisterAuthRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", hb.RegisterHandler)
		auth.POST("/login", hb.LoginHandler)
		auth.POST("/logout", hb.LogoutHandler)
		auth.POST("/refresh", hb.RefreshHandler)
		auth.GET("/session", middleware.UserAuth(hb.Identity, hb.Gate, false), hb.SessionHandler)
	}
}

// RegisterChatRoutes registers the conversation endpoints. Anonymous
// sessions may chat until their prompt quota runs out.
func RegisterChatRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	chat := api.Group("/chat")
	chat.Use(middleware.UserAuth(hb.Identity, hb.Gate, false))
	{
		chat.POST("/messages", hb.SendMessageHandler)
		chat.GET("/messages", hb.ListMessagesHandler)
		chat.DELETE("/messages", hb.ClearMessagesHandler)
	}
}

// RegisterBookingRoutes registers the active booking lifecycle endpoints.
func RegisterBookingRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	active := api.Group("/booking")
	active.Use(middleware.UserAuth(hb.Identity, hb.Gate, false))
	{
		active.GET("/active", hb.ActiveBookingHandler)
		active.POST("/checkout", hb.CheckoutHandler)
		active.POST("/abandon", hb.AbandonCheckoutHandler)
	}

	bookings := api.Group("/bookings")
	bookings.Use(middleware.UserAuth(hb.Identity, hb.Gate, true))
	{
		bookings.GET("", hb.ListBookingsHandler)
		bookings.DELETE("/:id", hb.DeleteBookingHandler)
		bookings.POST("/:id/cancel", hb.CancelBookingHandler)
	}
}

// RegisterPaymentRoutes registers processor return, reconcile and webhook endpoints.
// They are keyed by the processor session id, not by the caller.
func RegisterPaymentRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	payments := api.Group("/payments")
	{
		payments.GET("/return", hb.PaymentReturnHandler)
		payments.POST("/reconcile", hb.ReconcilePaymentHandler)
		payments.POST("/webhook", hb.PaymentWebhookHandler)
	}
}

// RegisterBillingRoutes registers the catalog and invoice endpoints.
func RegisterBillingRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	api.GET("/billing/options", hb.BillingOptionsHandler)

	invoices := api.Group("/invoices")
	invoices.Use(middleware.UserAuth(hb.Identity, hb.Gate, true))
	{
		invoices.POST("", hb.CreateInvoiceHandler)
		invoices.GET("", hb.ListInvoicesHandler)
		invoices.PATCH("/:id/status", hb.UpdateInvoiceStatusHandler)
	}
}

// RegisterProfileRoutes registers profile and device endpoints.
func RegisterProfileRoutes(api *gin.RouterGroup, hb *handlers.HandlerBundle) {
	protected := api.Group("")
	protected.Use(middleware.UserAuth(hb.Identity, hb.Gate, true))
	{
		protected.GET("/profile", hb.GetProfileHandler)
		protected.PUT("/profile/preferences", hb.SavePreferencesHandler)
		protected.PUT("/users/fcm-token", hb.RegisterFCMTokenHandler)
	}
}

// RegisterHealthRoute registers the health and metrics endpoints.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "message": "Hi, I'm Mia"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", utils.SessionHeader},
		ExposeHeaders:    []string{"Content-Length", utils.SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)

	api := r.Group("/api")
	api.Use(middleware.ClientSession())
	RegisterAuthRoutes(api, hb)
	RegisterChatRoutes(api, hb)
	RegisterBookingRoutes(api, hb)
	RegisterPaymentRoutes(api, hb)
	RegisterBillingRoutes(api, hb)
	RegisterProfileRoutes(api, hb)
}
