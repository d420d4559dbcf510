package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/model"
)

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// ListResources handles GET /api/resources.
func (h *Handler) ListResources(c *gin.Context) {
	activeOnly := c.Query("all") == ""
	resources, err := h.store.ListResources(c.Request.Context(), activeOnly)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

// GetResource handles GET /api/resources/:id.
func (h *Handler) GetResource(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resource ID"})
		return
	}

	resource, err := h.store.GetResource(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resource)
}

type createResourceRequest struct {
	Name              string                 `json:"name" binding:"required"`
	Category          model.ResourceCategory `json:"category"`
	Capacity          int                    `json:"capacity"`
	Floor             int                    `json:"floor"`
	Location          string                 `json:"location"`
	CostPerHour       float64                `json:"cost_per_hour"`
	RequiresKey       bool                   `json:"requires_key"`
	NextMaintenanceAt *time.Time             `json:"next_maintenance_at"`
}

// CreateResource handles POST /api/resources (administrative).
func (h *Handler) CreateResource(c *gin.Context) {
	var req createResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Category == "" {
		req.Category = model.CategoryRoom
	}
	if req.Capacity <= 0 {
		req.Capacity = 1
	}

	resource := &model.ReservableResource{
		Name:              req.Name,
		Category:          req.Category,
		Capacity:          req.Capacity,
		Floor:             req.Floor,
		Location:          req.Location,
		CostPerHour:       req.CostPerHour,
		RequiresKey:       req.RequiresKey,
		Active:            true,
		NextMaintenanceAt: req.NextMaintenanceAt,
	}
	if err := h.store.CreateResource(c.Request.Context(), resource); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resource)
}

type setResourceActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetResourceActive handles PATCH /api/resources/:id/active. Deactivation
// is the soft-delete path; reservations keep referencing the row.
func (h *Handler) SetResourceActive(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resource ID"})
		return
	}

	var req setResourceActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetResourceActive(c.Request.Context(), id, *req.Active); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAvailability handles GET /api/resources/:id/availability?start=&end=.
// It answers whether the window is free and lists anything in the way.
func (h *Handler) GetAvailability(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid resource ID"})
		return
	}

	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'start' timestamp format. Use RFC3339."})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'end' timestamp format. Use RFC3339."})
		return
	}

	w, err := alloc.NewWindow(start, end)
	if err != nil {
		abortWithError(c, err)
		return
	}

	conflicts, err := h.booking.Availability().Conflicts(c.Request.Context(), id, w)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available": len(conflicts) == 0,
		"conflicts": conflicts,
	})
}

// GetReservationStats handles GET /api/resources/stats: counts by status
// and mean completed duration, aggregated on demand.
func (h *Handler) GetReservationStats(c *gin.Context) {
	stats, err := h.store.ReservationStats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
