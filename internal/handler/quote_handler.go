package handler

import (
	"strconv"

	"github.com/Swiftline-Couriers/service-quotes/internal/application"
	"github.com/Swiftline-Couriers/service-quotes/internal/geo"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/response"
	"github.com/gin-gonic/gin"
)

// QuoteHandler handles HTTP requests for the quote page: tiers, address
// autocomplete, distance resolution and pricing.
type QuoteHandler struct {
	service *application.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(service *application.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// RegisterRoutes registers all quote routes on the given router group.
func (h *QuoteHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/tiers", h.ListTiers)
		v1.GET("/addresses/suggest", h.Suggest)
		v1.POST("/addresses/select", h.SelectAddress)
		v1.POST("/distance", h.ResolveDistance)
		v1.GET("/quotes", h.Quote)
	}
}

// ListTiers handles GET /api/v1/tiers.
func (h *QuoteHandler) ListTiers(c *gin.Context) {
	response.Success(c, h.service.Tiers())
}

// Suggest handles GET /api/v1/addresses/suggest. The stream parameter keys
// one input's edit sequence so rapid keystrokes debounce against each other.
func (h *QuoteHandler) Suggest(c *gin.Context) {
	stream := c.Query("stream")
	if stream == "" {
		response.BadRequest(c, "stream is required")
		return
	}

	results, err := h.service.Suggest(c.Request.Context(), stream, c.Query("text"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if results == nil {
		results = []geo.Location{}
	}
	response.Success(c, results)
}

// SelectAddress handles POST /api/v1/addresses/select.
func (h *QuoteHandler) SelectAddress(c *gin.Context) {
	var body struct {
		Stream   string       `json:"stream" binding:"required"`
		Location geo.Location `json:"location" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	h.service.SelectLocation(body.Stream, body.Location)
	response.Success(c, body.Location)
}

// ResolveDistance handles POST /api/v1/distance.
func (h *QuoteHandler) ResolveDistance(c *gin.Context) {
	var body struct {
		Stream      string        `json:"stream" binding:"required"`
		Pickup      *geo.Location `json:"pickup"`
		Destination *geo.Location `json:"destination"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// Removing either endpoint clears the distance.
	if body.Pickup == nil || body.Destination == nil {
		h.service.InvalidateDistance(body.Stream)
		response.Success(c, geo.Distance{Status: geo.DistanceIdle})
		return
	}

	// An unavailable route is a valid quote-page outcome, not a failed
	// request; the caller always gets the tri-state view.
	d, _ := h.service.ResolveDistance(c.Request.Context(), body.Stream, *body.Pickup, *body.Destination)
	response.Success(c, d)
}

// Quote handles GET /api/v1/quotes. Without a tier parameter every tier is
// priced; with one, just that tier.
func (h *QuoteHandler) Quote(c *gin.Context) {
	distance, err := strconv.ParseFloat(c.Query("distance_miles"), 64)
	if err != nil {
		response.BadRequest(c, "distance_miles must be a number")
		return
	}
	pickup := c.Query("pickup")
	destination := c.Query("destination")

	if tier := c.Query("tier"); tier != "" {
		b, err := h.service.QuoteTier(tier, distance, pickup, destination)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, b)
		return
	}

	results, err := h.service.QuoteAll(distance, pickup, destination)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, results)
}
