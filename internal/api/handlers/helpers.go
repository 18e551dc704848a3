package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainduel/backend/internal/apperr"
)

// respondError maps the error taxonomy onto HTTP statuses in one place so
// every handler degrades the same way.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindTimeout:
		status = http.StatusRequestTimeout
	case apperr.KindChainRejected:
		status = http.StatusUnprocessableEntity
	case apperr.KindUnavailable:
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"error": err.Error(), "kind": apperr.KindOf(err).String()}
	if reason := apperr.ReasonOf(err); reason != "" {
		body["reason"] = reason
	}
	c.JSON(status, body)
}
