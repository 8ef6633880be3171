package http

import (
	"errors"
	"net/http"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// envelope is the body of every REST response.
type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Data       any             `json:"data,omitempty"`
	Count      *int            `json:"count,omitempty"`
	Pagination *app.Pagination `json:"pagination,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func okList(c *gin.Context, data any, count int) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Count: &count})
}

type knownError struct {
	err     error
	status  int
	message string
}

var knownErrors = []knownError{
	{domain.ErrInvalidFormID, http.StatusBadRequest, "Invalid form ID format"},
	{domain.ErrInvalidResponseID, http.StatusBadRequest, "Invalid response ID format"},
	{domain.ErrFormNotPublished, http.StatusBadRequest, "Form is not published and cannot accept responses"},
	{domain.ErrPublishIncomplete, http.StatusBadRequest, "Cannot publish form: Form must have a title and at least one question"},
	{domain.ErrFormNotFound, http.StatusNotFound, "Form not found"},
	{domain.ErrResponseNotFound, http.StatusNotFound, "Response not found"},
}

// responder maps service errors onto HTTP responses.
type responder struct {
	logger     *zap.Logger
	production bool
}

// fail writes err as an error envelope. fallback is the client message for
// unexpected errors.
func (r responder) fail(c *gin.Context, err error, fallback string) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, envelope{Message: "Validation failed", Errors: verr.Messages})
		return
	}
	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			c.JSON(k.status, envelope{Message: k.message})
			return
		}
	}

	r.logger.Error(fallback,
		zap.String("path", c.FullPath()),
		zap.String("requestId", requestIDFrom(c)),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, envelope{Message: fallback, Error: r.detail(err)})
}

func (r responder) badRequest(c *gin.Context, message string, err error) {
	c.JSON(http.StatusBadRequest, envelope{Message: message, Error: r.detail(err)})
}

func (r responder) detail(err error) string {
	if r.production || err == nil {
		return ""
	}
	return err.Error()
}
