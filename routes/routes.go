package routes

import (
	"food-marketplace-api/handlers"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"

	"github.com/gin-gonic/gin"
)

// Guards are the middleware chains protecting route groups
type Guards struct {
	Auth      gin.HandlerFunc
	AuthLimit gin.HandlerFunc
}

func SetupRoutes(r *gin.Engine, h *handlers.Handler, g Guards) {
	api := r.Group("/api")

	// ── Public routes ──────────────────────────────────────────────
	authGroup := api.Group("/auth", g.AuthLimit)
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/google", h.GoogleSignIn)
	}

	api.GET("/restaurants", h.ListRestaurants)
	api.GET("/restaurants/:id", h.GetRestaurant)
	api.GET("/menu/price-comparison", h.ComparePrices)
	api.GET("/menu/:restaurantId", h.GetMenu)
	api.GET("/order-lifecycle", h.GetOrderLifecycle)

	// ── Authenticated routes ───────────────────────────────────────
	auth := api.Group("", g.Auth)
	{
		auth.GET("/auth/profile", h.GetProfile)
		auth.PATCH("/auth/profile", h.UpdateProfile)
		auth.PATCH("/auth/location", h.UpdateLocation)

		auth.GET("/addresses", h.ListAddresses)
		auth.POST("/addresses", h.CreateAddress)
		auth.PATCH("/addresses", h.UpdateAddress)
		auth.DELETE("/addresses", h.DeleteAddress)

		auth.GET("/favorites", h.ListFavorites)
		auth.POST("/favorites", h.AddFavorite)
		auth.DELETE("/favorites", h.RemoveFavorite)

		auth.POST("/orders", h.PlaceOrder)
		auth.GET("/orders", h.GetMyOrders)
		auth.GET("/orders/tracking", h.GetTracking)
		auth.POST("/orders/tracking", h.CreateTracking)
		auth.PATCH("/orders/tracking", h.PingTracking)
		auth.GET("/orders/:orderId", h.GetOrderDetail)
		auth.POST("/orders/:orderId/cancel", h.CancelOrder)

		auth.POST("/coupons/validate", h.ValidateCoupon)
		auth.POST("/gift-cards/check", h.CheckGiftCard)
		auth.PATCH("/gift-cards/check", h.RedeemGiftCard)

		auth.POST("/payment/create-order", h.CreatePayment)
		auth.POST("/payment/verify", h.VerifyPayment)
	}

	// ── Restaurant owner routes ────────────────────────────────────
	owner := api.Group("/owner", g.Auth, middleware.RoleRequired(models.RoleRestaurantOwner, models.RoleAdmin))
	{
		owner.GET("/restaurants", h.OwnerRestaurants)
		owner.GET("/orders", h.OwnerOrders)
		owner.PATCH("/orders", h.UpdateOrderStatus)

		owner.POST("/menu", h.AddMenuItem)
		owner.PATCH("/menu/:itemId", h.UpdateMenuItem)
		owner.DELETE("/menu/:itemId", h.DeleteMenuItem)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := api.Group("/admin", g.Auth, middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/commission", h.CommissionReport)
		admin.POST("/commission", h.SetCommissionRate)
		admin.PATCH("/commission", h.SetCommissionStatus)
		admin.GET("/commission/export", h.ExportCommission)

		admin.GET("/stats", h.PlatformStats)
		admin.GET("/analytics/order-trends", h.OrderTrends)
		admin.GET("/analytics/popular-items", h.PopularItems)
		admin.GET("/users", h.ListUsers)

		admin.POST("/restaurants", h.CreateRestaurant)
		admin.POST("/coupons", h.CreateCoupon)
		admin.POST("/gift-cards", h.IssueGiftCard)
		admin.GET("/gift-cards/:code", h.GiftCardLedger)
	}
}
