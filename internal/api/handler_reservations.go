package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dorm-booking-backend/internal/model"
	"dorm-booking-backend/internal/store"
)

type createReservationRequest struct {
	UserID     string    `json:"user_id" binding:"required"`
	ResourceID int64     `json:"resource_id" binding:"required"`
	Start      time.Time `json:"start" binding:"required"`
	End        time.Time `json:"end" binding:"required"`
}

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.booking.CreateReservation(c.Request.Context(), req.UserID, req.ResourceID, req.Start, req.End)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListReservations handles GET /api/reservations with optional user_id,
// resource_id, status, from, and to filters.
func (h *Handler) ListReservations(c *gin.Context) {
	f := store.ReservationFilter{
		UserID: c.Query("user_id"),
	}
	if v := c.Query("resource_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resource_id"})
			return
		}
		f.ResourceID = id
	}
	if v := c.Query("status"); v != "" {
		f.Statuses = []model.ReservationStatus{model.ReservationStatus(v)}
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp format. Use RFC3339."})
			return
		}
		f.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' timestamp format. Use RFC3339."})
			return
		}
		f.To = t
	}

	reservations, err := h.store.ListReservations(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// GetReservation handles GET /api/reservations/:id.
func (h *Handler) GetReservation(c *gin.Context) {
	r, err := h.store.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// reservationCommand adapts an engine command to a gin handler.
func (h *Handler) reservationCommand(run func(c *gin.Context, id string) (*model.Reservation, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := run(c, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// ConfirmReservation handles POST /api/reservations/:id/confirm.
func (h *Handler) ConfirmReservation(c *gin.Context) {
	h.reservationCommand(func(c *gin.Context, id string) (*model.Reservation, error) {
		return h.booking.Confirm(c.Request.Context(), id)
	})(c)
}

// CancelReservation handles POST /api/reservations/:id/cancel.
func (h *Handler) CancelReservation(c *gin.Context) {
	h.reservationCommand(func(c *gin.Context, id string) (*model.Reservation, error) {
		return h.booking.Cancel(c.Request.Context(), id)
	})(c)
}

// CheckIn handles POST /api/reservations/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	h.reservationCommand(func(c *gin.Context, id string) (*model.Reservation, error) {
		return h.booking.CheckIn(c.Request.Context(), id)
	})(c)
}

// CheckOut handles POST /api/reservations/:id/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	h.reservationCommand(func(c *gin.Context, id string) (*model.Reservation, error) {
		return h.booking.CheckOut(c.Request.Context(), id)
	})(c)
}

// MarkNoShow handles POST /api/reservations/:id/no-show.
func (h *Handler) MarkNoShow(c *gin.Context) {
	h.reservationCommand(func(c *gin.Context, id string) (*model.Reservation, error) {
		return h.booking.MarkNoShow(c.Request.Context(), id)
	})(c)
}

type pickUpKeyRequest struct {
	KeyID int64 `json:"key_id" binding:"required"`
}

// PickUpKey handles POST /api/reservations/:id/key-pickup.
func (h *Handler) PickUpKey(c *gin.Context) {
	var req pickUpKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.booking.PickUpKey(c.Request.Context(), c.Param("id"), req.KeyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ReturnReservationKey handles POST /api/reservations/:id/key-return.
func (h *Handler) ReturnReservationKey(c *gin.Context) {
	h.reservationCommand(func(c *gin.Context, id string) (*model.Reservation, error) {
		return h.booking.ReturnKey(c.Request.Context(), id)
	})(c)
}

// ListOverdueReservations handles GET /api/reservations/overdue.
func (h *Handler) ListOverdueReservations(c *gin.Context) {
	overdue, err := h.booking.Overdue(c.Request.Context(), time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, overdue)
}
