package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/pkg/apperr"
	"github.com/oksasatya/go-auth-service/pkg/response"
)

// ErrorBody is the "error" member of a failure envelope.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorHandler renders the last error pushed with c.Error. It is the only place
// that turns an apperr.Kind into a status code. With debug set, the wrapped
// cause of internal errors is included in the body.
func ErrorHandler(logger *logrus.Logger, debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.WithFields(logrus.Fields{
						"request_id": c.GetString("request_id"),
						"path":       c.Request.URL.Path,
						"panic":      r,
					}).Error("panic recovered")
				}
				if !c.Writer.Written() {
					response.Error[any](c, http.StatusInternalServerError, "something went wrong",
						ErrorBody{Kind: apperr.KindInternal.String()})
				}
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		render(c, logger, debug, c.Errors.Last().Err)
	}
}

func render(c *gin.Context, logger *logrus.Logger, debug bool, err error) {
	e := apperr.As(err)
	body := ErrorBody{Kind: e.Kind.String(), Code: e.Code, Details: e.Details}
	msg := e.Message

	if e.Kind == apperr.KindInternal {
		if logger != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"request_id": c.GetString("request_id"),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
			}).Error(e.Message)
		}
		msg = "something went wrong"
		if debug {
			body.Cause = causeOf(e)
		}
	}

	status := e.Status
	if status == 0 {
		status = e.Kind.Status()
	}
	response.Error[any](c, status, msg, body)
}

func causeOf(e *apperr.Error) string {
	if inner := errors.Unwrap(e); inner != nil {
		return e.Message + ": " + inner.Error()
	}
	return e.Message
}
