package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	"github.com/google/uuid"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// IsValid returns true if the payment method is recognized.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentCash || m == PaymentCard
}

// Store field keys. Each key is independently settable so a partial write
// never corrupts the rest of the session.
const (
	keyState            = "state"
	keyTier             = "tier"
	keyDistance         = "distance_miles"
	keyPickup           = "pickup"
	keyDestination      = "destination"
	keyPrice            = "price"
	keyBreakdown        = "breakdown"
	keyPaymentMethod    = "payment_method"
	keyPaymentCompleted = "payment_completed"
	keyCheckoutID       = "checkout_id"
	keyPickupDate       = "pickup_date"
	keyPickupTime       = "pickup_time"
	keyDropoffDate      = "dropoff_date"
	keyDropoffTime      = "dropoff_time"
	keyCreatedAt        = "created_at"

	formFieldPrefix = "form."
)

// requiredFormFields must be present before a booking can be submitted.
var requiredFormFields = []string{
	"first_name", "last_name", "email", "telephone",
	"collection_address_line", "collection_city", "collection_postcode",
	"delivery_address_line", "delivery_city", "delivery_postcode",
}

// acknowledgementFields are the consent checkboxes. They are only enforced
// while payment has not completed; a successful card payment is treated as
// implicit acceptance.
var acknowledgementFields = []string{"terms", "loading_notice"}

// Session is the aggregate for one in-progress quote/booking. It survives
// full-page navigations and the hosted-checkout redirect, so every mutation
// must be reflected into the durable Store by the caller.
type Session struct {
	id               uuid.UUID
	state            State
	tierName         string
	distanceMiles    float64
	pickup           string
	destination      string
	price            float64
	breakdown        quote.Breakdown
	paymentMethod    PaymentMethod
	paymentCompleted bool
	checkoutID       string
	pickupDate       string
	pickupTime       string
	dropoffDate      string
	dropoffTime      string
	form             map[string]string
	createdAt        time.Time
}

// NewSession creates a session for a chosen tier. On-demand tiers carry no
// price and cannot be booked online.
func NewSession(tierName string, breakdown quote.Breakdown, distanceMiles float64, pickup, destination string) (*Session, error) {
	if tierName == "" {
		return nil, apperr.NewValidationError("tier name is required")
	}
	if breakdown.OnDemand {
		return nil, apperr.NewValidationError("on-demand tiers require direct contact and cannot be booked online")
	}
	if distanceMiles < 0 {
		return nil, apperr.NewInvalidDistanceError(distanceMiles)
	}

	return &Session{
		id:            uuid.New(),
		state:         StateTierSelected,
		tierName:      tierName,
		distanceMiles: distanceMiles,
		pickup:        pickup,
		destination:   destination,
		price:         breakdown.Total,
		breakdown:     breakdown,
		paymentMethod: PaymentCash,
		form:          make(map[string]string),
		createdAt:     time.Now().UTC(),
	}, nil
}

// --- Getters ---

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// TierName returns the selected vehicle tier name.
func (s *Session) TierName() string { return s.tierName }

// DistanceMiles returns the trip distance the quote was priced at.
func (s *Session) DistanceMiles() float64 { return s.distanceMiles }

// Pickup returns the pickup display text.
func (s *Session) Pickup() string { return s.pickup }

// Destination returns the destination display text.
func (s *Session) Destination() string { return s.destination }

// Price returns the quoted total.
func (s *Session) Price() float64 { return s.price }

// Breakdown returns the price breakdown the session was created with.
func (s *Session) Breakdown() quote.Breakdown { return s.breakdown }

// PaymentMethod returns the chosen payment method.
func (s *Session) PaymentMethod() PaymentMethod { return s.paymentMethod }

// PaymentCompleted reports whether a card payment has been confirmed.
func (s *Session) PaymentCompleted() bool { return s.paymentCompleted }

// CheckoutID returns the provider checkout session, if one was created.
func (s *Session) CheckoutID() string { return s.checkoutID }

// Schedule returns pickup/dropoff date and time values.
func (s *Session) Schedule() (pickupDate, pickupTime, dropoffDate, dropoffTime string) {
	return s.pickupDate, s.pickupTime, s.dropoffDate, s.dropoffTime
}

// FormField returns a single form field value.
func (s *Session) FormField(name string) string { return s.form[name] }

// FormFields returns a copy of all form fields.
func (s *Session) FormFields() map[string]string {
	out := make(map[string]string, len(s.form))
	for k, v := range s.form {
		out[k] = v
	}
	return out
}

// CreatedAt returns the creation timestamp.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// --- Behavior ---

// ensureEditable moves the session into details entry if needed and rejects
// edits on a terminal session.
func (s *Session) ensureEditable() error {
	switch s.state {
	case StateTierSelected, StateAwaitingPayment:
		s.state = StateDetailsInProgress
		return nil
	case StateDetailsInProgress, StatePaymentConfirmed:
		return nil
	default:
		return apperr.NewInvalidStateError(string(s.state), string(StateDetailsInProgress))
	}
}

// SetFormField records a single form field edit. Writing the same value
// twice is a no-op.
func (s *Session) SetFormField(name, value string) error {
	if name == "" {
		return apperr.NewValidationError("field name is required")
	}
	if s.form[name] == value {
		return nil
	}
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.form[name] = value
	return nil
}

// SetPaymentMethod changes the intended payment method. Once a card payment
// has completed the method is locked to card.
func (s *Session) SetPaymentMethod(m PaymentMethod) error {
	if !m.IsValid() {
		return apperr.NewValidationError(fmt.Sprintf("invalid payment method: %s", m))
	}
	if s.paymentCompleted && m != PaymentCard {
		return apperr.NewConflictError("payment already completed, method is locked to card")
	}
	if s.paymentMethod == m {
		return nil
	}
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.paymentMethod = m
	return nil
}

// SetPickupDate updates the pickup date. A dropoff date earlier than the new
// pickup date is pulled forward to match.
func (s *Session) SetPickupDate(v string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.pickupDate = v
	if s.dropoffDate != "" && s.dropoffDate < v {
		s.dropoffDate = v
	}
	return nil
}

// SetPickupTime updates the pickup time.
func (s *Session) SetPickupTime(v string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.pickupTime = v
	return nil
}

// SetDropoffDate updates the dropoff date; it may not precede the pickup date.
func (s *Session) SetDropoffDate(v string) error {
	if s.pickupDate != "" && v < s.pickupDate {
		return apperr.NewValidationError("dropoff date cannot be before pickup date")
	}
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.dropoffDate = v
	return nil
}

// SetDropoffTime updates the dropoff time.
func (s *Session) SetDropoffTime(v string) error {
	if err := s.ensureEditable(); err != nil {
		return err
	}
	s.dropoffTime = v
	return nil
}

// BeginCheckout marks the session as waiting on the hosted checkout page.
func (s *Session) BeginCheckout() error {
	if s.paymentMethod != PaymentCard {
		return apperr.NewValidationError("checkout is only available for card payments")
	}
	if !s.state.CanTransitionTo(StateAwaitingPayment) {
		return apperr.NewInvalidStateError(string(s.state), string(StateAwaitingPayment))
	}
	s.state = StateAwaitingPayment
	return nil
}

// AttachCheckout records the provider checkout session created for this
// booking.
func (s *Session) AttachCheckout(checkoutID string) error {
	if s.state != StateAwaitingPayment {
		return apperr.NewInvalidStateError(string(s.state), string(StateAwaitingPayment))
	}
	if checkoutID == "" {
		return apperr.NewValidationError("checkout ID is required")
	}
	s.checkoutID = checkoutID
	return nil
}

// AbortCheckout returns an abandoned checkout to details entry. Confirmed
// payments never regress.
func (s *Session) AbortCheckout() error {
	if s.state != StateAwaitingPayment {
		return apperr.NewInvalidStateError(string(s.state), string(StateDetailsInProgress))
	}
	s.state = StateDetailsInProgress
	return nil
}

// ConfirmPayment records a successful card payment. It is idempotent: the
// completed flag only ever transitions false to true, and once set the
// payment method is locked to card.
func (s *Session) ConfirmPayment() error {
	if s.paymentCompleted {
		return nil
	}
	if !s.state.CanTransitionTo(StatePaymentConfirmed) {
		return apperr.NewInvalidStateError(string(s.state), string(StatePaymentConfirmed))
	}
	s.state = StatePaymentConfirmed
	s.paymentCompleted = true
	s.paymentMethod = PaymentCard
	return nil
}

// ValidateForSubmit checks that all required fields are present. Consent
// checkboxes are only enforced while no card payment has completed.
func (s *Session) ValidateForSubmit() error {
	var missing []string
	for _, f := range requiredFormFields {
		if strings.TrimSpace(s.form[f]) == "" {
			missing = append(missing, f)
		}
	}
	if !s.paymentCompleted {
		for _, f := range acknowledgementFields {
			if s.form[f] == "" {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		return apperr.NewValidationError(fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// MarkSubmitted finalizes the session. Cash bookings submit from details
// entry; card bookings only after payment confirmation.
func (s *Session) MarkSubmitted() error {
	if s.paymentMethod == PaymentCard && !s.paymentCompleted {
		return apperr.NewInvalidStateError(string(s.state), string(StateSubmitted))
	}
	if !s.state.CanTransitionTo(StateSubmitted) {
		return apperr.NewInvalidStateError(string(s.state), string(StateSubmitted))
	}
	s.state = StateSubmitted
	return nil
}

// PaymentStatus is the status reported to the relay: "paid" once a card
// payment completed, "pending" for cash on delivery.
func (s *Session) PaymentStatus() string {
	if s.paymentCompleted {
		return "paid"
	}
	return "pending"
}

// --- Persistence mapping ---

// Fields flattens the session into independently settable store keys.
func (s *Session) Fields() (map[string]string, error) {
	breakdownJSON, err := json.Marshal(s.breakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal breakdown: %w", err)
	}

	fields := map[string]string{
		keyState:            string(s.state),
		keyTier:             s.tierName,
		keyDistance:         strconv.FormatFloat(s.distanceMiles, 'f', -1, 64),
		keyPickup:           s.pickup,
		keyDestination:      s.destination,
		keyPrice:            strconv.FormatFloat(s.price, 'f', -1, 64),
		keyBreakdown:        string(breakdownJSON),
		keyPaymentMethod:    string(s.paymentMethod),
		keyPaymentCompleted: strconv.FormatBool(s.paymentCompleted),
		keyCheckoutID:       s.checkoutID,
		keyPickupDate:       s.pickupDate,
		keyPickupTime:       s.pickupTime,
		keyDropoffDate:      s.dropoffDate,
		keyDropoffTime:      s.dropoffTime,
		keyCreatedAt:        s.createdAt.Format(time.RFC3339Nano),
	}
	for name, value := range s.form {
		fields[formFieldPrefix+name] = value
	}
	return fields, nil
}

// Hydrate rebuilds a session from its durable store fields.
func Hydrate(id uuid.UUID, fields map[string]string) (*Session, error) {
	if len(fields) == 0 {
		return nil, apperr.NewNotFoundError("booking session", id.String())
	}

	state, err := ParseState(fields[keyState])
	if err != nil {
		return nil, err
	}

	distance, err := strconv.ParseFloat(fields[keyDistance], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored distance: %w", err)
	}
	price, err := strconv.ParseFloat(fields[keyPrice], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored price: %w", err)
	}

	var breakdown quote.Breakdown
	if raw := fields[keyBreakdown]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &breakdown); err != nil {
			return nil, fmt.Errorf("failed to parse stored breakdown: %w", err)
		}
	}

	createdAt := time.Now().UTC()
	if raw := fields[keyCreatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			createdAt = t
		}
	}

	form := make(map[string]string)
	for k, v := range fields {
		if strings.HasPrefix(k, formFieldPrefix) {
			form[strings.TrimPrefix(k, formFieldPrefix)] = v
		}
	}

	return &Session{
		id:               id,
		state:            state,
		tierName:         fields[keyTier],
		distanceMiles:    distance,
		pickup:           fields[keyPickup],
		destination:      fields[keyDestination],
		price:            price,
		breakdown:        breakdown,
		paymentMethod:    PaymentMethod(fields[keyPaymentMethod]),
		paymentCompleted: fields[keyPaymentCompleted] == "true",
		checkoutID:       fields[keyCheckoutID],
		pickupDate:       fields[keyPickupDate],
		pickupTime:       fields[keyPickupTime],
		dropoffDate:      fields[keyDropoffDate],
		dropoffTime:      fields[keyDropoffTime],
		form:             form,
		createdAt:        createdAt,
	}, nil
}
