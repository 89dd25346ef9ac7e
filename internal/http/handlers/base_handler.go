// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/booking"
	"courier/internal/modules/matching"
	"courier/internal/modules/tracking"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeBookingError(c *gin.Context, err error) {
	switch err {
	case booking.ErrBadRequest, booking.ErrInvalidStage:
		writeError(c, http.StatusBadRequest, err.Error())
	case booking.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	case booking.ErrInvalidState, booking.ErrConflict, booking.ErrEditLocked:
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeMatchingError(c *gin.Context, err error) {
	switch err {
	case matching.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	case matching.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeTrackingError(c *gin.Context, err error) {
	switch err {
	case tracking.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	case tracking.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
