package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dorm-booking-backend/internal/model"
	"dorm-booking-backend/internal/parse"
	"dorm-booking-backend/internal/store"
)

type registerKeyRequest struct {
	Code string        `json:"code" binding:"required"`
	Type model.KeyType `json:"type"`
}

// RegisterKey handles POST /api/keys (administrative). The code is parsed
// into its structured fields; master-key codes imply the master type.
func (h *Handler) RegisterKey(c *gin.Context) {
	var req registerKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parsed, err := parse.ParseKeyCode(req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	keyType := req.Type
	if keyType == "" {
		keyType = model.KeyTypeRoom
	}
	if parsed.Master() {
		keyType = model.KeyTypeMaster
	}

	key := &model.DormitoryKey{
		Code:     req.Code,
		Type:     keyType,
		Status:   model.KeyAvailable,
		Building: parsed.Building,
		Room:     parsed.Room,
		Copy:     parsed.Copy,
	}
	if err := h.store.CreateKey(c.Request.Context(), key); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, key)
}

// ListKeys handles GET /api/keys with an optional status filter.
func (h *Handler) ListKeys(c *gin.Context) {
	keys, err := h.store.ListKeys(c.Request.Context(), model.KeyStatus(c.Query("status")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

// ReinstateKey handles POST /api/keys/:id/reinstate.
func (h *Handler) ReinstateKey(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key ID"})
		return
	}

	key, err := h.custody.Reinstate(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// PlaceKeyOutOfService handles POST /api/keys/:id/out-of-service.
func (h *Handler) PlaceKeyOutOfService(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key ID"})
		return
	}

	key, err := h.custody.PlaceOutOfService(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

type issueKeyRequest struct {
	UserID         string     `json:"user_id" binding:"required"`
	KeyID          int64      `json:"key_id" binding:"required"`
	ExpectedReturn *time.Time `json:"expected_return"` // nil = open-ended
}

// IssueKey handles POST /api/assignments.
func (h *Handler) IssueKey(c *gin.Context) {
	var req issueKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.custody.IssueKey(c.Request.Context(), req.UserID, req.KeyID, req.ExpectedReturn)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// ListAssignments handles GET /api/assignments with optional user_id,
// key_id, and open filters.
func (h *Handler) ListAssignments(c *gin.Context) {
	f := store.AssignmentFilter{
		UserID:   c.Query("user_id"),
		OpenOnly: c.Query("open") != "",
	}
	if v := c.Query("key_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid key_id"})
			return
		}
		f.KeyID = id
	}

	assignments, err := h.store.ListAssignments(c.Request.Context(), f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignments)
}

// assignmentCommand adapts a custody command to a gin handler.
func (h *Handler) assignmentCommand(run func(c *gin.Context, id string) (*model.KeyAssignment, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := run(c, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

// ReturnKey handles POST /api/assignments/:id/return.
func (h *Handler) ReturnKey(c *gin.Context) {
	h.assignmentCommand(func(c *gin.Context, id string) (*model.KeyAssignment, error) {
		return h.custody.Return(c.Request.Context(), id)
	})(c)
}

// ReportKeyLost handles POST /api/assignments/:id/lost.
func (h *Handler) ReportKeyLost(c *gin.Context) {
	h.assignmentCommand(func(c *gin.Context, id string) (*model.KeyAssignment, error) {
		return h.custody.ReportLost(c.Request.Context(), id)
	})(c)
}

// ReportKeyDamaged handles POST /api/assignments/:id/damaged.
func (h *Handler) ReportKeyDamaged(c *gin.Context) {
	h.assignmentCommand(func(c *gin.Context, id string) (*model.KeyAssignment, error) {
		return h.custody.ReportDamaged(c.Request.Context(), id)
	})(c)
}

// ListOverdueAssignments handles GET /api/assignments/overdue.
func (h *Handler) ListOverdueAssignments(c *gin.Context) {
	overdue, err := h.custody.Overdue(c.Request.Context(), time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, overdue)
}
