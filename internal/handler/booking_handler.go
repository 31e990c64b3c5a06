package handler

import (
	"strconv"

	"github.com/Swiftline-Couriers/service-quotes/internal/application"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BookingHandler handles HTTP requests for booking sessions and submitted
// bookings.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/api/v1/sessions")
	{
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
		sessions.PUT("/:id/fields", h.SetField)
		sessions.PUT("/:id/payment-method", h.SetPaymentMethod)
		sessions.PUT("/:id/schedule", h.SetSchedule)
		sessions.POST("/:id/checkout", h.BeginCheckout)
		sessions.GET("/:id/payment-return", h.PaymentReturn)
		sessions.POST("/:id/submit", h.Submit)
	}

	bookings := r.Group("/api/v1/bookings")
	{
		bookings.GET("", h.ListBookings)
		bookings.GET("/:reference", h.GetBooking)
	}
}

// StartSession handles POST /api/v1/sessions.
func (h *BookingHandler) StartSession(c *gin.Context) {
	var req application.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.StartSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *BookingHandler) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	result, err := h.service.GetSession(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SetField handles PUT /api/v1/sessions/:id/fields.
func (h *BookingHandler) SetField(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var body struct {
		Name  string `json:"name" binding:"required"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetField(c.Request.Context(), id, body.Name, body.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SetPaymentMethod handles PUT /api/v1/sessions/:id/payment-method.
func (h *BookingHandler) SetPaymentMethod(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var body struct {
		Method string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetPaymentMethod(c.Request.Context(), id, body.Method)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SetSchedule handles PUT /api/v1/sessions/:id/schedule.
func (h *BookingHandler) SetSchedule(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	var req application.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SetSchedule(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// BeginCheckout handles POST /api/v1/sessions/:id/checkout.
func (h *BookingHandler) BeginCheckout(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	result, err := h.service.BeginCheckout(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// PaymentReturn handles GET /api/v1/sessions/:id/payment-return, the URL the
// hosted checkout redirects the customer back to.
func (h *BookingHandler) PaymentReturn(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	paymentSuccess := c.Query("payment_success") == "true"
	result, err := h.service.ConfirmPaymentReturn(c.Request.Context(), id, paymentSuccess)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Submit handles POST /api/v1/sessions/:id/submit.
func (h *BookingHandler) Submit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	result, err := h.service.Submit(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetBooking handles GET /api/v1/bookings/:reference.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	result, err := h.service.GetBooking(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListBookings handles GET /api/v1/bookings.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	results, total, err := h.service.ListBookings(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, results, total, page, limit)
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
