package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"dorm-booking-backend/internal/booking"
	"dorm-booking-backend/internal/custody"
	"dorm-booking-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	booking *booking.Engine
	custody *custody.Engine
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, b *booking.Engine, c *custody.Engine, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		booking: b,
		custody: c,
		webpush: webpushOptions,
	}
}
