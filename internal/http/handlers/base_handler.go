// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"kirana/internal/modules/buyer"
	"kirana/internal/modules/delivery"
	"kirana/internal/modules/presence"
	"kirana/internal/modules/shop"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// isValidID accepts the uuid-style ids the services generate.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code, msg string) {
	writeJSON(c, status, errorResponse{Error: code, Message: msg})
}

// writeServiceError maps module errors to HTTP statuses and stable error codes.
func writeServiceError(c *gin.Context, err error) {
	var se *delivery.StorageError
	switch {
	case errors.Is(err, delivery.ErrValidation),
		errors.Is(err, presence.ErrValidation),
		errors.Is(err, shop.ErrValidation),
		errors.Is(err, buyer.ErrValidation):
		writeError(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, delivery.ErrNotFound),
		errors.Is(err, presence.ErrNotFound),
		errors.Is(err, shop.ErrNotFound),
		errors.Is(err, buyer.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, delivery.ErrNoDriversAvailable):
		writeError(c, http.StatusUnprocessableEntity, "no_drivers_available", "no drivers are online within range of the buyer")
	case errors.Is(err, delivery.ErrRequestAlreadyClaimed):
		writeError(c, http.StatusConflict, "request_already_claimed", err.Error())
	case errors.Is(err, delivery.ErrInvalidTransition):
		writeError(c, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, delivery.ErrNotAssignedDriver):
		writeError(c, http.StatusForbidden, "not_assigned_driver", err.Error())
	case errors.As(err, &se):
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		writeError(c, http.StatusServiceUnavailable, "storage_error", "storage unavailable, retry later")
	default:
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		writeError(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// pathID reads and validates the :id path parameter.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "validation_error", "invalid id")
		return "", false
	}
	return id, true
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "validation_error", "invalid json: "+err.Error())
		return false
	}
	return true
}
