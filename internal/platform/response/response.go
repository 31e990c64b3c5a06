package response

import (
	"errors"
	"net/http"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	"github.com/gin-gonic/gin"
)

// Envelope is the standard success body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorBody is the standard error body.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// Success writes a 200 with the given payload.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// PaginatedEnvelope is the standard paginated success body.
type PaginatedEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
}

// Paginated writes a 200 with a paginated payload.
func Paginated(c *gin.Context, data interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, PaginatedEnvelope{Success: true, Data: data, Total: total, Page: page, Limit: limit})
}

// BadRequest writes a 400 with a message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: msg, Kind: string(apperr.KindValidation)})
}

// Error maps an application error to its HTTP status.
func Error(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal server error"})
		return
	}

	status := statusFor(appErr.Kind)
	c.JSON(status, ErrorBody{Error: appErr.Message, Kind: string(appErr.Kind)})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidDistance:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindProviderUnavailable, apperr.KindPaymentSession:
		return http.StatusBadGateway
	case apperr.KindSubmissionTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindSubmissionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
