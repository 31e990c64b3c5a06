package events

import (
	"context"
	"encoding/json"

	"github.com/Swiftline-Couriers/service-quotes/internal/application"
	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
	"github.com/Swiftline-Couriers/service-quotes/internal/platform/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PaymentEventConsumer listens to payment events and confirms card payments
// on booking sessions. It backs up the customer's return redirect: if the
// customer never makes it back, the provider event still completes the
// payment.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  *application.BookingService
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service *application.BookingService,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, application.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case application.PaymentCheckoutCompleted:
		return c.handleCheckoutCompleted(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handleCheckoutCompleted(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt application.CheckoutCompletedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse CheckoutCompletedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing checkout completed event",
		zap.String("session_id", evt.SessionID.String()),
		zap.String("checkout_id", evt.CheckoutID),
	)

	err := c.service.ConfirmPaymentBySession(ctx, evt.SessionID, evt.CheckoutID)
	if err != nil {
		// The session may already have submitted and been torn down, or the
		// event may not match its checkout. Neither is retryable.
		switch apperr.KindOf(err) {
		case apperr.KindNotFound, apperr.KindConflict, apperr.KindInvalidState:
			c.logger.Warn("dropping unprocessable checkout event",
				zap.String("session_id", evt.SessionID.String()),
				zap.Error(err),
			)
			return nil
		}
		c.logger.Error("failed to confirm payment from checkout event",
			zap.String("session_id", evt.SessionID.String()),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("payment confirmed from checkout event",
		zap.String("session_id", evt.SessionID.String()),
	)
	return nil
}
