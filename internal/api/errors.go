package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dorm-booking-backend/internal/alloc"
)

// abortWithError maps the engine error taxonomy onto HTTP statuses. Every
// taxonomy error is a recoverable caller-side condition; only storage
// failures read as server trouble.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, alloc.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, alloc.ErrConflict),
		errors.Is(err, alloc.ErrKeyUnavailable),
		errors.Is(err, alloc.ErrKeyOutstanding),
		errors.Is(err, alloc.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, alloc.ErrLimitExceeded),
		errors.Is(err, alloc.ErrResourceUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, alloc.ErrInvalidWindow):
		status = http.StatusBadRequest
	case errors.Is(err, alloc.ErrStorage):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
