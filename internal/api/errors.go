package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

var errRelationalDisabled = errors.New("relational store is disabled")

// respondError writes err as an ErrorResponse with the status its kind maps to.
// Server-side failures are attached to the gin context so the access log reports them.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	} else {
		logger.FromContext(c.Request.Context()).Debug("Rejected request",
			logger.String("path", c.Request.URL.Path),
			logger.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     apperrors.Message(err),
		Code:      apperrors.Code(err),
		Timestamp: time.Now(),
	})
}
