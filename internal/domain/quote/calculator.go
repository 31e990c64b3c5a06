package quote

import (
	"math"
	"strings"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
)

// BaseMiles is the distance included in a tier's base price before the
// per-mile overage rate applies.
const BaseMiles = 12.0

// Breakdown is the priced result for one tier over one trip.
// OnDemand indicates a tier that has no published price; such quotes carry
// no numeric amounts and the caller must present a contact option instead.
type Breakdown struct {
	TierName         string  `json:"tier_name"`
	OnDemand         bool    `json:"on_demand"`
	BasePrice        float64 `json:"base_price"`
	ExtraMiles       float64 `json:"extra_miles"`
	ExtraMilesCost   float64 `json:"extra_miles_cost"`
	CongestionCharge float64 `json:"congestion_charge"`
	Total            float64 `json:"total"`
}

// Calculator prices trips against the tier catalog. It is pure and safe to
// call on every recompute.
type Calculator struct {
	zoneMarker     string
	congestionRate float64
}

// NewCalculator creates a Calculator with the given congestion-zone marker
// and congestion charge rate. The rate is configurable rather than fixed so
// the charge can be activated without a code change.
func NewCalculator(zoneMarker string, congestionRate float64) *Calculator {
	return &Calculator{zoneMarker: zoneMarker, congestionRate: congestionRate}
}

// Quote prices a single tier for the given trip distance in miles. The
// pickup and destination display texts decide zone membership.
//
// Trips within BaseMiles cost the tier's base price. Beyond BaseMiles the
// overage is charged per mile, and the base price is retained only when both
// endpoints fall inside the marked zone.
func (c *Calculator) Quote(distanceMiles float64, tier Tier, pickup, destination string) (Breakdown, error) {
	if distanceMiles < 0 || math.IsNaN(distanceMiles) || math.IsInf(distanceMiles, 0) {
		return Breakdown{}, apperr.NewInvalidDistanceError(distanceMiles)
	}

	if tier.OnDemandOnly {
		return Breakdown{TierName: tier.Name, OnDemand: true}, nil
	}

	pickupInZone := c.inZone(pickup)
	destInZone := c.inZone(destination)

	var basePrice, extraMiles, extraMilesCost float64
	if distanceMiles <= BaseMiles {
		basePrice = tier.BasePrice
	} else {
		extraMiles = distanceMiles - BaseMiles
		extraMilesCost = round2(extraMiles * tier.PerMileRate)
		if pickupInZone && destInZone {
			basePrice = tier.BasePrice
		}
	}

	var congestion float64
	if pickupInZone || destInZone {
		congestion = c.congestionRate
	}

	return Breakdown{
		TierName:         tier.Name,
		BasePrice:        basePrice,
		ExtraMiles:       round2(extraMiles),
		ExtraMilesCost:   extraMilesCost,
		CongestionCharge: congestion,
		Total:            round2(basePrice + extraMilesCost + congestion),
	}, nil
}

// QuoteAll prices every tier in the catalog for the given trip.
func (c *Calculator) QuoteAll(distanceMiles float64, pickup, destination string) ([]Breakdown, error) {
	results := make([]Breakdown, 0, len(catalog))
	for _, tier := range catalog {
		b, err := c.Quote(distanceMiles, tier, pickup, destination)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, nil
}

func (c *Calculator) inZone(text string) bool {
	return text != "" && strings.Contains(text, c.zoneMarker)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
