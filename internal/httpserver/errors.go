package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"shopcore/internal/domain"
)

type errorResponse struct {
	Error     string            `json:"error"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// writeError maps a service error to a status code. Unknown errors are logged
// and reported as 500 without detail.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	_ = c.Error(err)
	resp := errorResponse{RequestID: getRequestID(c)}

	var ve *domain.ValidationError
	var ite *domain.InvalidTransitionError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		resp.Error = ve.Error()
		if ve.Field != "" {
			resp.Fields = map[string]string{ve.Field: ve.Message}
		}
	case errors.Is(err, domain.ErrProviderDisabled):
		status = http.StatusBadRequest
		resp.Error = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "not found"
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
		resp.Error = "forbidden"
	case errors.As(err, &ite):
		status = http.StatusConflict
		resp.Error = ite.Error()
	case errors.Is(err, domain.ErrAlreadyExists):
		status = http.StatusConflict
		resp.Error = "already exists"
	case errors.Is(err, domain.ErrProviderUnavailable), errors.Is(err, domain.ErrProviderRejected):
		status = http.StatusBadGateway
		resp.Error = "payment provider error"
	default:
		logger.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		resp.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, resp)
}

// writeBindError reports a malformed or invalid request body.
func writeBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	resp := errorResponse{Error: "invalid request", RequestID: getRequestID(c)}

	var verrs validator.ValidationErrors
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve) && ve.Field != "":
		resp.Fields = map[string]string{ve.Field: ve.Message}
	case errors.As(err, &verrs):
		resp.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			resp.Fields[fe.Field()] = messageForTag(fe.Tag(), fe.Param())
		}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}
