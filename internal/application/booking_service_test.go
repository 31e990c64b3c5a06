package application

import (
	"context"
	"sync"
	"testing"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	bookingDomain "github.com/Swiftline-Couriers/service-quotes/internal/domain/booking"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	"github.com/Swiftline-Couriers/service-quotes/internal/payment"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/kafka"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryStore is an in-memory session.Store for unit tests.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[uuid.UUID]map[string]string)}
}

func (m *memoryStore) SetFields(_ context.Context, id uuid.UUID, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[id]
	if !ok {
		existing = make(map[string]string)
		m.sessions[id] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (m *memoryStore) Snapshot(_ context.Context, id uuid.UUID) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.sessions[id]))
	for k, v := range m.sessions[id] {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) Clear(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryStore) has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions[id]) > 0
}

// memoryRepo is an in-memory booking.Repository for unit tests.
type memoryRepo struct {
	mu      sync.Mutex
	records []*bookingDomain.Record
	saveErr error
}

func (r *memoryRepo) Save(_ context.Context, record *bookingDomain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records = append(r.records, record)
	return nil
}

func (r *memoryRepo) FindByReference(_ context.Context, reference string) (*bookingDomain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.Reference() == reference {
			return record, nil
		}
	}
	return nil, apperr.NewNotFoundError("booking", reference)
}

func (r *memoryRepo) FindBySessionID(_ context.Context, sessionID uuid.UUID) (*bookingDomain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.records {
		if record.SessionID() == sessionID {
			return record, nil
		}
	}
	return nil, apperr.NewNotFoundError("booking", sessionID.String())
}

func (r *memoryRepo) ListRecent(_ context.Context, _, _ int) ([]*bookingDomain.Record, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records, int64(len(r.records)), nil
}

// stubCheckout returns a canned checkout session.
type stubCheckout struct {
	session payment.CheckoutSession
	err     error
	lastReq payment.CheckoutRequest
}

func (c *stubCheckout) CreateSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	c.lastReq = req
	if c.err != nil {
		return payment.CheckoutSession{}, c.err
	}
	return c.session, nil
}

// stubRelay records submissions and can be told to fail.
type stubRelay struct {
	err    error
	fields []map[string]string
}

func (r *stubRelay) Submit(_ context.Context, fields map[string]string) error {
	if r.err != nil {
		return r.err
	}
	r.fields = append(r.fields, fields)
	return nil
}

// stubPublisher captures published events.
type stubPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
	topics []string
}

func (p *stubPublisher) PublishEvent(_ context.Context, topic string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

type bookingFixture struct {
	service   *BookingService
	store     *memoryStore
	repo      *memoryRepo
	checkout  *stubCheckout
	relay     *stubRelay
	publisher *stubPublisher
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		store: newMemoryStore(),
		repo:  &memoryRepo{},
		checkout: &stubCheckout{session: payment.CheckoutSession{
			ID:  "cs_test",
			URL: "https://pay.example/cs_test",
		}},
		relay:     &stubRelay{},
		publisher: &stubPublisher{},
	}
	f.service = NewBookingService(
		f.store,
		f.repo,
		quote.NewCalculator("London", 0),
		f.checkout,
		f.relay,
		f.publisher,
		"https://booking.swiftline.example/sessions",
		zap.NewNop(),
	)
	return f
}

func (f *bookingFixture) startSession(t *testing.T) uuid.UUID {
	t.Helper()
	dto, err := f.service.StartSession(context.Background(), StartSessionRequest{
		TierName:      "Small Van",
		DistanceMiles: 20.5,
		Pickup:        "10 Downing St, London",
		Destination:   "Heathrow Airport, London",
	})
	require.NoError(t, err)
	return dto.ID
}

func (f *bookingFixture) fillDetails(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for _, field := range []string{
		"first_name", "last_name", "email", "telephone",
		"collection_address_line", "collection_city", "collection_postcode",
		"delivery_address_line", "delivery_city", "delivery_postcode",
	} {
		_, err := f.service.SetField(ctx, id, field, "x")
		require.NoError(t, err)
	}
}

func (f *bookingFixture) acceptTerms(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for _, field := range []string{"terms", "loading_notice"} {
		_, err := f.service.SetField(ctx, id, field, "on")
		require.NoError(t, err)
	}
}

func TestStartSession_PricesTheTrip(t *testing.T) {
	f := newBookingFixture()

	dto, err := f.service.StartSession(context.Background(), StartSessionRequest{
		TierName:      "Small Van",
		DistanceMiles: 20.5,
		Pickup:        "10 Downing St, London",
		Destination:   "Heathrow Airport, London",
	})
	require.NoError(t, err)

	assert.Equal(t, "tier_selected", dto.State)
	assert.InDelta(t, 93.70, dto.Price, 0.001)
	assert.Equal(t, "cash", dto.PaymentMethod)
}

func TestStartSession_UnknownTier(t *testing.T) {
	f := newBookingFixture()

	_, err := f.service.StartSession(context.Background(), StartSessionRequest{
		TierName: "Rocket Van", Pickup: "a", Destination: "b",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestStartSession_OnDemandTierRejected(t *testing.T) {
	f := newBookingFixture()

	_, err := f.service.StartSession(context.Background(), StartSessionRequest{
		TierName: "Luton Van", DistanceMiles: 5, Pickup: "a", Destination: "b",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSessionSurvivesReload(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	_, err := f.service.SetField(ctx, id, "first_name", "Ada")
	require.NoError(t, err)
	_, err = f.service.SetSchedule(ctx, id, ScheduleRequest{
		PickupDate: strPtr("2026-09-10"), PickupTime: strPtr("09:30"),
	})
	require.NoError(t, err)

	// Every read goes back through the store, simulating a fresh page load.
	dto, err := f.service.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "details_in_progress", dto.State)
	assert.Equal(t, "Ada", dto.Fields["first_name"])
	assert.Equal(t, "2026-09-10", dto.PickupDate)
	assert.InDelta(t, 93.70, dto.Price, 0.001)
}

func TestGetSession_UnknownID(t *testing.T) {
	f := newBookingFixture()

	_, err := f.service.GetSession(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBeginCheckout(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)

	dto, err := f.service.BeginCheckout(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "cs_test", dto.CheckoutID)
	assert.Equal(t, "https://pay.example/cs_test", dto.RedirectURL)
	assert.InDelta(t, 93.70, f.checkout.lastReq.Amount, 0.001)
	assert.Contains(t, f.checkout.lastReq.ReturnURL, "payment_success=true")

	state, err := f.service.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "awaiting_payment", state.State)
}

func TestBeginCheckout_ProviderFailureLeavesSessionUntouched(t *testing.T) {
	f := newBookingFixture()
	f.checkout.err = apperr.NewPaymentSessionError(assert.AnError)
	id := f.startSession(t)
	ctx := context.Background()

	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)

	_, err = f.service.BeginCheckout(ctx, id)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPaymentSession, apperr.KindOf(err))

	state, err := f.service.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "details_in_progress", state.State, "awaiting_payment must not be persisted without a checkout session")
}

func TestConfirmPaymentReturn_SuccessAndDuplicate(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)
	_, err = f.service.BeginCheckout(ctx, id)
	require.NoError(t, err)

	dto, err := f.service.ConfirmPaymentReturn(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, "payment_confirmed", dto.State)
	assert.True(t, dto.PaymentCompleted)

	// A replayed return URL is absorbed.
	dto, err = f.service.ConfirmPaymentReturn(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, dto.PaymentCompleted)
}

func TestConfirmPaymentReturn_CancelledCheckout(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)
	_, err = f.service.BeginCheckout(ctx, id)
	require.NoError(t, err)

	dto, err := f.service.ConfirmPaymentReturn(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, "details_in_progress", dto.State)
	assert.False(t, dto.PaymentCompleted)
}

func TestConfirmPaymentBySession_ReconcilesWithRedirect(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)
	_, err = f.service.BeginCheckout(ctx, id)
	require.NoError(t, err)

	// Provider event arrives first.
	require.NoError(t, f.service.ConfirmPaymentBySession(ctx, id, "cs_test"))

	// Redirect arrives second and is absorbed.
	dto, err := f.service.ConfirmPaymentReturn(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, dto.PaymentCompleted)

	// Duplicate provider event is a no-op too.
	require.NoError(t, f.service.ConfirmPaymentBySession(ctx, id, "cs_test"))
}

func TestConfirmPaymentBySession_WrongCheckoutRejected(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)
	_, err = f.service.BeginCheckout(ctx, id)
	require.NoError(t, err)

	err = f.service.ConfirmPaymentBySession(ctx, id, "cs_other")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestSubmit_CashBooking(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	f.fillDetails(t, id)
	f.acceptTerms(t, id)

	dto, err := f.service.Submit(ctx, id)
	require.NoError(t, err)
	assert.Regexp(t, `^QB-[A-Z2-9]{6}$`, dto.Reference)
	assert.Equal(t, "pending", dto.PaymentStatus)

	// Relay received the assembled form.
	require.Len(t, f.relay.fields, 1)
	assert.Equal(t, "pending", f.relay.fields[0]["paymentStatus"])
	assert.Equal(t, "Small Van", f.relay.fields[0]["vehicle"])
	assert.Equal(t, "93.70", f.relay.fields[0]["price"])

	// Durable record written and event published.
	require.Len(t, f.repo.records, 1)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, TopicBookingEvents, f.publisher.topics[0])
	assert.Equal(t, BookingSubmitted, f.publisher.events[0].Type)

	// Session torn down.
	assert.False(t, f.store.has(id))
	_, err = f.service.GetSession(ctx, id)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSubmit_PaidCardBookingSkipsCheckboxes(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	f.fillDetails(t, id)
	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)
	_, err = f.service.BeginCheckout(ctx, id)
	require.NoError(t, err)
	_, err = f.service.ConfirmPaymentReturn(ctx, id, true)
	require.NoError(t, err)

	// No terms/loading_notice fields were ever set.
	dto, err := f.service.Submit(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "paid", dto.PaymentStatus)
	assert.Equal(t, "card", dto.PaymentMethod)
}

func TestSubmit_MissingFields(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)

	_, err := f.service.Submit(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, f.relay.fields, "invalid submissions never reach the relay")
}

func TestSubmit_CardWithoutPaymentRejected(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	f.fillDetails(t, id)
	f.acceptTerms(t, id)
	_, err := f.service.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)

	_, err = f.service.Submit(ctx, id)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
}

func TestSubmit_RelayFailureKeepsSession(t *testing.T) {
	f := newBookingFixture()
	f.relay.err = apperr.NewSubmissionTimeoutError(assert.AnError)
	id := f.startSession(t)
	ctx := context.Background()

	f.fillDetails(t, id)
	f.acceptTerms(t, id)

	_, err := f.service.Submit(ctx, id)
	require.Error(t, err)
	assert.Equal(t, apperr.KindSubmissionTimeout, apperr.KindOf(err))

	// Session intact and still submittable once the relay recovers.
	assert.True(t, f.store.has(id))
	dto, err := f.service.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "details_in_progress", dto.State)

	f.relay.err = nil
	_, err = f.service.Submit(ctx, id)
	require.NoError(t, err)
	assert.False(t, f.store.has(id))
}

func TestSubmit_SaveFailureKeepsSession(t *testing.T) {
	f := newBookingFixture()
	f.repo.saveErr = assert.AnError
	id := f.startSession(t)
	ctx := context.Background()

	f.fillDetails(t, id)
	f.acceptTerms(t, id)

	_, err := f.service.Submit(ctx, id)
	require.Error(t, err)
	assert.True(t, f.store.has(id))
}

func TestGetBooking_ByReference(t *testing.T) {
	f := newBookingFixture()
	id := f.startSession(t)
	ctx := context.Background()

	f.fillDetails(t, id)
	f.acceptTerms(t, id)
	submitted, err := f.service.Submit(ctx, id)
	require.NoError(t, err)

	found, err := f.service.GetBooking(ctx, submitted.Reference)
	require.NoError(t, err)
	assert.Equal(t, submitted.Reference, found.Reference)
	assert.Equal(t, "Small Van", found.TierName)

	_, err = f.service.GetBooking(ctx, "QB-UNKNOWN")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func strPtr(s string) *string { return &s }
