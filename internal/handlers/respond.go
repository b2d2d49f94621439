// Package handlers implements the REST API consumed by worker processes and
// the operator dashboard. Every response uses the same envelope: success
// flag, optional data, optional message.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gobotctl/internal/control"
	"github.com/jonesrussell/gobotctl/internal/engine"
	"github.com/jonesrussell/gobotctl/internal/repository"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, message string, data any) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondFailure maps known error kinds onto HTTP statuses: missing rows to
// 404, a busy control gateway to 409, engine connectivity trouble to 502 or
// 504, everything else to 500.
func respondFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, control.ErrBusy):
		respondError(c, http.StatusConflict, err.Error())
	case engine.IsTimeout(err):
		respondError(c, http.StatusGatewayTimeout, err.Error())
	case engine.IsUnreachable(err):
		respondError(c, http.StatusBadGateway, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}
