package application

import (
	"time"

	"github.com/google/uuid"
)

// Kafka topics this service publishes to or consumes from.
const (
	TopicBookingEvents = "swiftline.booking.events"
	TopicPaymentEvents = "swiftline.payment.events"
)

// Event types carried in the CloudEvent envelope.
const (
	BookingSubmitted         = "booking.submitted"
	PaymentCheckoutCompleted = "payment.checkout.completed"
)

// BookingSubmittedEvent is published when a booking session submits.
type BookingSubmittedEvent struct {
	SessionID     uuid.UUID `json:"session_id"`
	Reference     string    `json:"reference"`
	TierName      string    `json:"tier_name"`
	Pickup        string    `json:"pickup"`
	Destination   string    `json:"destination"`
	DistanceMiles float64   `json:"distance_miles"`
	Price         float64   `json:"price"`
	PaymentMethod string    `json:"payment_method"`
	PaymentStatus string    `json:"payment_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CheckoutCompletedEvent is emitted by the payment provider's webhook relay
// when a hosted checkout finishes. It is the server-side counterpart of the
// customer's return redirect.
type CheckoutCompletedEvent struct {
	SessionID  uuid.UUID `json:"session_id"`
	CheckoutID string    `json:"checkout_id"`
	AmountPaid float64   `json:"amount_paid"`
	OccurredAt time.Time `json:"occurred_at"`
}
