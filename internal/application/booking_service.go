package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	bookingDomain "github.com/Swiftline-Couriers/service-quotes/internal/domain/booking"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/session"
	"github.com/Swiftline-Couriers/service-quotes/internal/payment"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/kafka"
	"github.com/Swiftline-Couriers/service-quotes/internal/relay"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventSource = "service-quotes"

// EventPublisher publishes CloudEvents to the event bus. *kafka.Producer
// satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// StartSessionRequest holds the data needed to open a booking session.
type StartSessionRequest struct {
	TierName      string  `json:"tier_name" binding:"required"`
	DistanceMiles float64 `json:"distance_miles"`
	Pickup        string  `json:"pickup" binding:"required"`
	Destination   string  `json:"destination" binding:"required"`
}

// ScheduleRequest carries partial schedule edits; nil fields are untouched.
type ScheduleRequest struct {
	PickupDate  *string `json:"pickup_date"`
	PickupTime  *string `json:"pickup_time"`
	DropoffDate *string `json:"dropoff_date"`
	DropoffTime *string `json:"dropoff_time"`
}

// SessionDTO is the response representation of a booking session.
type SessionDTO struct {
	ID               uuid.UUID         `json:"id"`
	State            string            `json:"state"`
	TierName         string            `json:"tier_name"`
	DistanceMiles    float64           `json:"distance_miles"`
	Pickup           string            `json:"pickup"`
	Destination      string            `json:"destination"`
	Price            float64           `json:"price"`
	Breakdown        quote.Breakdown   `json:"breakdown"`
	PaymentMethod    string            `json:"payment_method"`
	PaymentCompleted bool              `json:"payment_completed"`
	PickupDate       string            `json:"pickup_date,omitempty"`
	PickupTime       string            `json:"pickup_time,omitempty"`
	DropoffDate      string            `json:"dropoff_date,omitempty"`
	DropoffTime      string            `json:"dropoff_time,omitempty"`
	Fields           map[string]string `json:"fields"`
}

// CheckoutDTO is returned when a hosted checkout is created.
type CheckoutDTO struct {
	CheckoutID  string `json:"checkout_id"`
	RedirectURL string `json:"redirect_url"`
}

// BookingDTO is the response representation of a submitted booking.
type BookingDTO struct {
	Reference     string            `json:"reference"`
	TierName      string            `json:"tier_name"`
	Pickup        string            `json:"pickup"`
	Destination   string            `json:"destination"`
	DistanceMiles float64           `json:"distance_miles"`
	Price         float64           `json:"price"`
	Breakdown     quote.Breakdown   `json:"breakdown"`
	PaymentMethod string            `json:"payment_method"`
	PaymentStatus string            `json:"payment_status"`
	PickupDate    string            `json:"pickup_date,omitempty"`
	PickupTime    string            `json:"pickup_time,omitempty"`
	DropoffDate   string            `json:"dropoff_date,omitempty"`
	DropoffTime   string            `json:"dropoff_time,omitempty"`
	Contact       map[string]string `json:"contact"`
	SubmittedAt   time.Time         `json:"submitted_at"`
}

// BookingService orchestrates the booking session lifecycle from tier
// selection through payment to submission.
type BookingService struct {
	store      session.Store
	repo       bookingDomain.Repository
	calculator *quote.Calculator
	checkout   payment.Client
	relay      relay.Client
	producer   EventPublisher
	returnURL  string
	logger     *zap.Logger
}

// NewBookingService creates a new BookingService. returnURL is the absolute
// URL the checkout provider redirects the customer back to; the session ID
// and outcome marker are appended per checkout.
func NewBookingService(
	store session.Store,
	repo bookingDomain.Repository,
	calculator *quote.Calculator,
	checkout payment.Client,
	relayClient relay.Client,
	producer EventPublisher,
	returnURL string,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:      store,
		repo:       repo,
		calculator: calculator,
		checkout:   checkout,
		relay:      relayClient,
		producer:   producer,
		returnURL:  returnURL,
		logger:     logger,
	}
}

// StartSession opens a booking session for a quoted tier.
func (s *BookingService) StartSession(ctx context.Context, req StartSessionRequest) (*SessionDTO, error) {
	tier, ok := quote.TierByName(req.TierName)
	if !ok {
		return nil, apperr.NewNotFoundError("vehicle tier", req.TierName)
	}

	breakdown, err := s.calculator.Quote(req.DistanceMiles, tier, req.Pickup, req.Destination)
	if err != nil {
		return nil, err
	}

	sess, err := session.NewSession(req.TierName, breakdown, req.DistanceMiles, req.Pickup, req.Destination)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("booking session started",
		zap.String("session_id", sess.ID().String()),
		zap.String("tier", sess.TierName()),
		zap.Float64("price", sess.Price()),
	)
	result := toSessionDTO(sess)
	return &result, nil
}

// GetSession retrieves the current session state.
func (s *BookingService) GetSession(ctx context.Context, id uuid.UUID) (*SessionDTO, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toSessionDTO(sess)
	return &result, nil
}

// SetField records one form field edit.
func (s *BookingService) SetField(ctx context.Context, id uuid.UUID, name, value string) (*SessionDTO, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.SetFormField(name, value); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	result := toSessionDTO(sess)
	return &result, nil
}

// SetPaymentMethod changes the intended payment method.
func (s *BookingService) SetPaymentMethod(ctx context.Context, id uuid.UUID, method string) (*SessionDTO, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.SetPaymentMethod(session.PaymentMethod(method)); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	result := toSessionDTO(sess)
	return &result, nil
}

// SetSchedule applies partial schedule edits.
func (s *BookingService) SetSchedule(ctx context.Context, id uuid.UUID, req ScheduleRequest) (*SessionDTO, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.PickupDate != nil {
		if err := sess.SetPickupDate(*req.PickupDate); err != nil {
			return nil, err
		}
	}
	if req.PickupTime != nil {
		if err := sess.SetPickupTime(*req.PickupTime); err != nil {
			return nil, err
		}
	}
	if req.DropoffDate != nil {
		if err := sess.SetDropoffDate(*req.DropoffDate); err != nil {
			return nil, err
		}
	}
	if req.DropoffTime != nil {
		if err := sess.SetDropoffTime(*req.DropoffTime); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	result := toSessionDTO(sess)
	return &result, nil
}

// BeginCheckout creates a hosted checkout for a card payment and returns the
// redirect URL. The session only moves to awaiting payment once the provider
// session exists.
func (s *BookingService) BeginCheckout(ctx context.Context, id uuid.UUID) (*CheckoutDTO, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.BeginCheckout(); err != nil {
		return nil, err
	}

	cs, err := s.checkout.CreateSession(ctx, payment.CheckoutRequest{
		Amount:      sess.Price(),
		Currency:    "gbp",
		Description: fmt.Sprintf("%s: %s to %s", sess.TierName(), sess.Pickup(), sess.Destination()),
		ReturnURL:   fmt.Sprintf("%s/%s/payment-return?payment_success=true", s.returnURL, sess.ID()),
		CancelURL:   fmt.Sprintf("%s/%s/payment-return?payment_success=false", s.returnURL, sess.ID()),
		Metadata: map[string]string{
			"session_id": sess.ID().String(),
			"tier":       sess.TierName(),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := sess.AttachCheckout(cs.ID); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("hosted checkout created",
		zap.String("session_id", sess.ID().String()),
		zap.String("checkout_id", cs.ID),
	)
	return &CheckoutDTO{CheckoutID: cs.ID, RedirectURL: cs.URL}, nil
}

// ConfirmPaymentReturn processes the customer's redirect back from the
// hosted checkout. A success marker confirms the payment; anything else
// returns the session to details entry.
func (s *BookingService) ConfirmPaymentReturn(ctx context.Context, id uuid.UUID, paymentSuccess bool) (*SessionDTO, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if paymentSuccess {
		if err := sess.ConfirmPayment(); err != nil {
			return nil, err
		}
	} else if sess.State() == session.StateAwaitingPayment {
		if err := sess.AbortCheckout(); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	result := toSessionDTO(sess)
	return &result, nil
}

// ConfirmPaymentBySession confirms a payment from the provider's server-side
// event stream. It is idempotent with the redirect path: whichever arrives
// first wins and the other is absorbed.
func (s *BookingService) ConfirmPaymentBySession(ctx context.Context, id uuid.UUID, checkoutID string) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if sess.PaymentCompleted() {
		return nil
	}
	if checkoutID != "" && sess.CheckoutID() != "" && sess.CheckoutID() != checkoutID {
		return apperr.NewConflictError(
			fmt.Sprintf("checkout %s does not belong to session %s", checkoutID, id))
	}
	if err := sess.ConfirmPayment(); err != nil {
		return err
	}
	if err := s.persist(ctx, sess); err != nil {
		return err
	}
	s.logger.Info("payment confirmed from provider event",
		zap.String("session_id", id.String()),
		zap.String("checkout_id", checkoutID),
	)
	return nil
}

// Submit finalizes the booking: the form is relayed to the operations inbox,
// a durable record is written and the session is torn down. On any relay
// failure the session is left untouched so the customer can retry.
func (s *BookingService) Submit(ctx context.Context, id uuid.UUID) (*BookingDTO, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := sess.ValidateForSubmit(); err != nil {
		return nil, err
	}
	if err := sess.MarkSubmitted(); err != nil {
		return nil, err
	}

	if err := s.relay.Submit(ctx, relayFields(sess)); err != nil {
		return nil, err
	}

	pickupDate, pickupTime, dropoffDate, dropoffTime := sess.Schedule()
	record, err := bookingDomain.NewRecord(
		sess.ID(),
		sess.TierName(),
		sess.Pickup(),
		sess.Destination(),
		sess.DistanceMiles(),
		sess.Price(),
		sess.Breakdown(),
		string(sess.PaymentMethod()),
		sess.PaymentStatus(),
		pickupDate, pickupTime, dropoffDate, dropoffTime,
		sess.FormFields(),
	)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.publishBookingSubmitted(ctx, record)

	if err := s.store.Clear(ctx, sess.ID()); err != nil {
		s.logger.Error("failed to clear submitted session",
			zap.String("session_id", sess.ID().String()),
			zap.Error(err),
		)
	}

	s.logger.Info("booking submitted",
		zap.String("session_id", sess.ID().String()),
		zap.String("reference", record.Reference()),
		zap.String("payment_status", record.PaymentStatus()),
	)
	result := toBookingDTO(record)
	return &result, nil
}

// GetBooking retrieves a submitted booking by its reference.
func (s *BookingService) GetBooking(ctx context.Context, reference string) (*BookingDTO, error) {
	record, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(record)
	return &result, nil
}

// ListBookings returns recently submitted bookings with pagination.
func (s *BookingService) ListBookings(ctx context.Context, page, limit int) ([]BookingDTO, int64, error) {
	records, total, err := s.repo.ListRecent(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	dtos := make([]BookingDTO, len(records))
	for i, record := range records {
		dtos[i] = toBookingDTO(record)
	}
	return dtos, total, nil
}

// --- Helpers ---

func (s *BookingService) load(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	fields, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session.Hydrate(id, fields)
}

func (s *BookingService) persist(ctx context.Context, sess *session.Session) error {
	fields, err := sess.Fields()
	if err != nil {
		return err
	}
	if err := s.store.SetFields(ctx, sess.ID(), fields); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// relayFields assembles the form forwarded to the operations inbox.
func relayFields(sess *session.Session) map[string]string {
	fields := sess.FormFields()
	pickupDate, pickupTime, dropoffDate, dropoffTime := sess.Schedule()

	fields["vehicle"] = sess.TierName()
	fields["pickup"] = sess.Pickup()
	fields["destination"] = sess.Destination()
	fields["distance_miles"] = strconv.FormatFloat(sess.DistanceMiles(), 'f', 2, 64)
	fields["price"] = strconv.FormatFloat(sess.Price(), 'f', 2, 64)
	fields["paymentMethod"] = string(sess.PaymentMethod())
	fields["paymentStatus"] = sess.PaymentStatus()
	fields["pickup_date"] = pickupDate
	fields["pickup_time"] = pickupTime
	fields["dropoff_date"] = dropoffDate
	fields["dropoff_time"] = dropoffTime
	return fields
}

func (s *BookingService) publishBookingSubmitted(ctx context.Context, record *bookingDomain.Record) {
	evt := BookingSubmittedEvent{
		SessionID:     record.SessionID(),
		Reference:     record.Reference(),
		TierName:      record.TierName(),
		Pickup:        record.Pickup(),
		Destination:   record.Destination(),
		DistanceMiles: record.DistanceMiles(),
		Price:         record.Price(),
		PaymentMethod: record.PaymentMethod(),
		PaymentStatus: record.PaymentStatus(),
		OccurredAt:    time.Now().UTC(),
	}

	cloudEvent, err := kafka.NewCloudEvent(eventSource, BookingSubmitted, evt)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", BookingSubmitted),
			zap.Error(err),
		)
		return
	}
	if err := s.producer.PublishEvent(ctx, TopicBookingEvents, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", TopicBookingEvents),
			zap.String("event_type", BookingSubmitted),
			zap.Error(err),
		)
	}
}

func toSessionDTO(sess *session.Session) SessionDTO {
	pickupDate, pickupTime, dropoffDate, dropoffTime := sess.Schedule()
	return SessionDTO{
		ID:               sess.ID(),
		State:            sess.State().String(),
		TierName:         sess.TierName(),
		DistanceMiles:    sess.DistanceMiles(),
		Pickup:           sess.Pickup(),
		Destination:      sess.Destination(),
		Price:            sess.Price(),
		Breakdown:        sess.Breakdown(),
		PaymentMethod:    string(sess.PaymentMethod()),
		PaymentCompleted: sess.PaymentCompleted(),
		PickupDate:       pickupDate,
		PickupTime:       pickupTime,
		DropoffDate:      dropoffDate,
		DropoffTime:      dropoffTime,
		Fields:           sess.FormFields(),
	}
}

func toBookingDTO(record *bookingDomain.Record) BookingDTO {
	pickupDate, pickupTime, dropoffDate, dropoffTime := record.Schedule()
	return BookingDTO{
		Reference:     record.Reference(),
		TierName:      record.TierName(),
		Pickup:        record.Pickup(),
		Destination:   record.Destination(),
		DistanceMiles: record.DistanceMiles(),
		Price:         record.Price(),
		Breakdown:     record.Breakdown(),
		PaymentMethod: record.PaymentMethod(),
		PaymentStatus: record.PaymentStatus(),
		PickupDate:    pickupDate,
		PickupTime:    pickupTime,
		DropoffDate:   dropoffDate,
		DropoffTime:   dropoffTime,
		Contact:       record.Contact(),
		SubmittedAt:   record.SubmittedAt(),
	}
}
