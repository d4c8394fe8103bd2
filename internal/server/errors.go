package server

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jnieblas/openai-response-api-demo/internal/models"
	"github.com/jnieblas/openai-response-api-demo/internal/responses"
	"github.com/jnieblas/openai-response-api-demo/internal/storage"
)

// errorDetail maps an error to an HTTP status and response body
func errorDetail(err error) (int, models.ErrorDetail) {
	var (
		verr  *responses.ValidationError
		aerr  *responses.AuthenticationError
		qerr  *responses.QuotaExceededError
		rerr  *responses.RateLimitError
		apier *responses.APIError
		bind  validator.ValidationErrors
	)

	switch {
	case errors.As(err, &verr):
		return 400, models.ErrorDetail{
			Message: verr.Error(),
			Type:    "invalid_request_error",
			Code:    "invalid_value",
			Param:   verr.Field,
			Allowed: verr.Allowed,
		}
	case errors.As(err, &bind):
		fe := bind[0]
		return 400, models.ErrorDetail{
			Message: fmt.Sprintf("field %s failed on the '%s' rule", fe.Field(), fe.Tag()),
			Type:    "invalid_request_error",
			Code:    "invalid_value",
			Param:   fe.Field(),
		}
	case errors.Is(err, storage.ErrInvalidSession):
		return 400, models.ErrorDetail{
			Message: err.Error(),
			Type:    "invalid_request_error",
			Code:    "invalid_session",
			Param:   "session_id",
		}
	case errors.As(err, &aerr):
		return 401, models.ErrorDetail{
			Message: aerr.Message,
			Type:    "authentication_error",
			Code:    "invalid_api_key",
		}
	case errors.As(err, &qerr):
		return 402, models.ErrorDetail{
			Message: qerr.Message,
			Type:    "insufficient_quota",
			Code:    "quota_exceeded",
		}
	case errors.As(err, &rerr):
		return 429, models.ErrorDetail{
			Message:    rerr.Message,
			Type:       "rate_limit_error",
			Code:       "rate_limit_exceeded",
			RetryAfter: rerr.RetryAfter,
		}
	case errors.As(err, &apier) && errors.Is(err, context.DeadlineExceeded):
		return 504, models.ErrorDetail{
			Message: apier.Message,
			Type:    "timeout_error",
			Code:    "upstream_timeout",
		}
	case errors.As(err, &apier):
		detail := models.ErrorDetail{
			Message: apier.Message,
			Type:    "api_error",
		}
		if apier.StatusCode > 0 {
			detail.Code = fmt.Sprintf("upstream_%d", apier.StatusCode)
		}
		return 502, detail
	default:
		return 500, models.ErrorDetail{
			Message: err.Error(),
			Type:    "server_error",
		}
	}
}

// writeError sends err as a JSON error body
func (s *Server) writeError(c *gin.Context, err error) {
	status, detail := errorDetail(err)
	if detail.RetryAfter > 0 {
		c.Header("Retry-After", fmt.Sprint(detail.RetryAfter))
	}
	_ = c.Error(err)
	c.JSON(status, models.ErrorResponse{Error: detail})
}

// badRequest reports a body that could not be decoded
func (s *Server) badRequest(c *gin.Context, err error) {
	var bind validator.ValidationErrors
	if errors.As(err, &bind) {
		s.writeError(c, err)
		return
	}
	_ = c.Error(err)
	c.JSON(400, models.ErrorResponse{Error: models.ErrorDetail{
		Message: "Invalid request: " + err.Error(),
		Type:    "invalid_request_error",
		Code:    "invalid_json",
	}})
}

var registerTagNames sync.Once

// useJSONFieldNames makes binding errors report JSON field names
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}
