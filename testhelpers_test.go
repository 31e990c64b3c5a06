//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/application"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/quote"
	quoteEvents "github.com/Swiftline-Couriers/service-quotes/internal/events"
	"github.com/Swiftline-Couriers/service-quotes/internal/payment"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/kafka"
	"github.com/Swiftline-Couriers/service-quotes/internal/relay"
	"github.com/Swiftline-Couriers/service-quotes/internal/repository"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	RedisURL     string
	KafkaBrokers []string
	Cleanup      func()
}

// quoteStack holds wired-up booking service components plus the fake
// provider servers behind them.
type quoteStack struct {
	Service     *application.BookingService
	Consumer    *quoteEvents.PaymentEventConsumer
	RelayServer *relayRecorder
	Cleanup     func()
}

// relayRecorder plays the form-relay provider and records what it receives.
type relayRecorder struct {
	mu    sync.Mutex
	forms []map[string]string
	srv   *httptest.Server
}

func newRelayRecorder() *relayRecorder {
	r := &relayRecorder{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_ = req.ParseForm()
		form := make(map[string]string, len(req.PostForm))
		for k := range req.PostForm {
			form[k] = req.PostForm.Get(k)
		}
		r.mu.Lock()
		r.forms = append(r.forms, form)
		r.mu.Unlock()
		w.Write([]byte(`{"success":"true","message":"The form was submitted successfully."}`))
	}))
	return r
}

func (r *relayRecorder) received() []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]string, len(r.forms))
	copy(out, r.forms)
	return out
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_quotes",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_quotes sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(&repository.BookingModel{}))

	// Start Redis container for the session store.
	redisReq := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: redisReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)
	redisURL := fmt.Sprintf("redis://%s:%s/0", redisHost, redisPort.Port())

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, application.TopicBookingEvents, application.TopicPaymentEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		RedisURL:     redisURL,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupQuoteStack wires up the full booking service stack against real
// containers, with httptest servers playing the checkout and relay providers.
func setupQuoteStack(t *testing.T, infra *testInfra) *quoteStack {
	t.Helper()
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	redisClient, err := repository.NewRedisClient(ctx, infra.RedisURL)
	require.NoError(t, err)
	sessionStore := repository.NewRedisSessionStore(redisClient, time.Hour)

	checkoutSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(payment.CheckoutSession{
			ID:  "cs_integration",
			URL: "https://pay.example/cs_integration",
		})
	}))
	relayRec := newRelayRecorder()

	bookingRepo := repository.NewGormBookingRepository(infra.DB)
	calculator := quote.NewCalculator("London", 0)
	producer := kafka.NewProducer(infra.KafkaBrokers, logger)

	service := application.NewBookingService(
		sessionStore,
		bookingRepo,
		calculator,
		payment.NewClient(checkoutSrv.URL, "sk-test", checkoutSrv.Client()),
		relay.New(relayRec.srv.URL, "test-form", 15*time.Second, relayRec.srv.Client()),
		producer,
		"http://localhost:8080/api/v1/sessions",
		logger,
	)

	groupID := fmt.Sprintf("test-quotes-%s", uuid.New().String()[:8])
	consumer := quoteEvents.NewPaymentEventConsumer(infra.KafkaBrokers, groupID, service, logger)

	return &quoteStack{
		Service:     service,
		Consumer:    consumer,
		RelayServer: relayRec,
		Cleanup: func() {
			_ = consumer.Close()
			_ = producer.Close()
			_ = redisClient.Close()
			checkoutSrv.Close()
			relayRec.srv.Close()
		},
	}
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
