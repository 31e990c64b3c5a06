package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	"github.com/google/uuid"
)

const referenceChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Record is the durable trace of a submitted booking. It is written once at
// submission time and never mutated afterwards.
type Record struct {
	id            uuid.UUID
	reference     string
	sessionID     uuid.UUID
	tierName      string
	pickup        string
	destination   string
	distanceMiles float64
	price         float64
	breakdown     quote.Breakdown
	paymentMethod string
	paymentStatus string
	pickupDate    string
	pickupTime    string
	dropoffDate   string
	dropoffTime   string
	contact       map[string]string
	submittedAt   time.Time
}

// generateReference creates a booking reference in the format "QB-XXXXXX".
func generateReference() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking reference: %w", err)
		}
		result[i] = referenceChars[n.Int64()]
	}
	return "QB-" + string(result), nil
}

// NewRecord creates a Record for a booking that just submitted.
func NewRecord(
	sessionID uuid.UUID,
	tierName string,
	pickup, destination string,
	distanceMiles, price float64,
	breakdown quote.Breakdown,
	paymentMethod, paymentStatus string,
	pickupDate, pickupTime, dropoffDate, dropoffTime string,
	contact map[string]string,
) (*Record, error) {
	if sessionID == uuid.Nil {
		return nil, apperr.NewValidationError("session ID is required")
	}
	if tierName == "" {
		return nil, apperr.NewValidationError("tier name is required")
	}
	if pickup == "" || destination == "" {
		return nil, apperr.NewValidationError("pickup and destination are required")
	}
	if distanceMiles < 0 {
		return nil, apperr.NewInvalidDistanceError(distanceMiles)
	}
	if price < 0 {
		return nil, apperr.NewValidationError("price cannot be negative")
	}

	reference, err := generateReference()
	if err != nil {
		return nil, err
	}

	contactCopy := make(map[string]string, len(contact))
	for k, v := range contact {
		contactCopy[k] = v
	}

	return &Record{
		id:            uuid.New(),
		reference:     reference,
		sessionID:     sessionID,
		tierName:      tierName,
		pickup:        pickup,
		destination:   destination,
		distanceMiles: distanceMiles,
		price:         price,
		breakdown:     breakdown,
		paymentMethod: paymentMethod,
		paymentStatus: paymentStatus,
		pickupDate:    pickupDate,
		pickupTime:    pickupTime,
		dropoffDate:   dropoffDate,
		dropoffTime:   dropoffTime,
		contact:       contactCopy,
		submittedAt:   time.Now().UTC(),
	}, nil
}

// ReconstructRecord rebuilds a Record from persistence data (no validation).
func ReconstructRecord(
	id uuid.UUID,
	reference string,
	sessionID uuid.UUID,
	tierName string,
	pickup, destination string,
	distanceMiles, price float64,
	breakdown quote.Breakdown,
	paymentMethod, paymentStatus string,
	pickupDate, pickupTime, dropoffDate, dropoffTime string,
	contact map[string]string,
	submittedAt time.Time,
) *Record {
	return &Record{
		id:            id,
		reference:     reference,
		sessionID:     sessionID,
		tierName:      tierName,
		pickup:        pickup,
		destination:   destination,
		distanceMiles: distanceMiles,
		price:         price,
		breakdown:     breakdown,
		paymentMethod: paymentMethod,
		paymentStatus: paymentStatus,
		pickupDate:    pickupDate,
		pickupTime:    pickupTime,
		dropoffDate:   dropoffDate,
		dropoffTime:   dropoffTime,
		contact:       contact,
		submittedAt:   submittedAt,
	}
}

// --- Getters ---

// ID returns the record's unique identifier.
func (r *Record) ID() uuid.UUID { return r.id }

// Reference returns the human-readable booking reference.
func (r *Record) Reference() string { return r.reference }

// SessionID returns the booking session this record was submitted from.
func (r *Record) SessionID() uuid.UUID { return r.sessionID }

// TierName returns the booked vehicle tier.
func (r *Record) TierName() string { return r.tierName }

// Pickup returns the pickup display text.
func (r *Record) Pickup() string { return r.pickup }

// Destination returns the destination display text.
func (r *Record) Destination() string { return r.destination }

// DistanceMiles returns the trip distance the booking was priced at.
func (r *Record) DistanceMiles() float64 { return r.distanceMiles }

// Price returns the booked total.
func (r *Record) Price() float64 { return r.price }

// Breakdown returns the price breakdown.
func (r *Record) Breakdown() quote.Breakdown { return r.breakdown }

// PaymentMethod returns the payment method at submission.
func (r *Record) PaymentMethod() string { return r.paymentMethod }

// PaymentStatus returns "paid" or "pending".
func (r *Record) PaymentStatus() string { return r.paymentStatus }

// Schedule returns pickup/dropoff date and time values.
func (r *Record) Schedule() (pickupDate, pickupTime, dropoffDate, dropoffTime string) {
	return r.pickupDate, r.pickupTime, r.dropoffDate, r.dropoffTime
}

// Contact returns the submitted contact and address fields.
func (r *Record) Contact() map[string]string {
	out := make(map[string]string, len(r.contact))
	for k, v := range r.contact {
		out[k] = v
	}
	return out
}

// SubmittedAt returns the submission timestamp.
func (r *Record) SubmittedAt() time.Time { return r.submittedAt }
