package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"dorm-booking-backend/config"
	"dorm-booking-backend/internal/booking"
	"dorm-booking-backend/internal/custody"
	"dorm-booking-backend/internal/mw"
	"dorm-booking-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, b *booking.Engine, cust *custody.Engine, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, b, cust, webpushOptions)

	limit := rate.Limit(cfg.RateLimitPerSec)
	if limit <= 0 {
		limit = rate.Limit(10)
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}
	rateLimiter := mw.RateLimiter(limit, burst, cfg.RequestIPHeader)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	// Any successful write invalidates the cached catalog reads.
	api.Use(mw.Bust(cacheStore))
	{
		resources := api.Group("/resources")
		{
			resources.GET("", caching, handler.ListResources)
			resources.GET("/stats", handler.GetReservationStats)
			resources.GET("/:id", caching, handler.GetResource)
			resources.GET("/:id/availability", handler.GetAvailability)
			resources.POST("", handler.CreateResource)
			resources.PATCH("/:id/active", handler.SetResourceActive)
		}

		reservations := api.Group("/reservations")
		{
			reservations.POST("", handler.CreateReservation)
			reservations.GET("", handler.ListReservations)
			reservations.GET("/overdue", handler.ListOverdueReservations)
			reservations.GET("/:id", handler.GetReservation)
			reservations.POST("/:id/confirm", handler.ConfirmReservation)
			reservations.POST("/:id/cancel", handler.CancelReservation)
			reservations.POST("/:id/check-in", handler.CheckIn)
			reservations.POST("/:id/check-out", handler.CheckOut)
			reservations.POST("/:id/no-show", handler.MarkNoShow)
			reservations.POST("/:id/key-pickup", handler.PickUpKey)
			reservations.POST("/:id/key-return", handler.ReturnReservationKey)
		}

		keys := api.Group("/keys")
		{
			keys.POST("", handler.RegisterKey)
			keys.GET("", caching, handler.ListKeys)
			keys.POST("/:id/reinstate", handler.ReinstateKey)
			keys.POST("/:id/out-of-service", handler.PlaceKeyOutOfService)
		}

		assignments := api.Group("/assignments")
		{
			assignments.POST("", handler.IssueKey)
			assignments.GET("", handler.ListAssignments)
			assignments.GET("/overdue", handler.ListOverdueAssignments)
			assignments.POST("/:id/return", handler.ReturnKey)
			assignments.POST("/:id/lost", handler.ReportKeyLost)
			assignments.POST("/:id/damaged", handler.ReportKeyDamaged)
		}

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
