package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

const (
	exchangeName = "payment_events"

	routingKeySettled = "payment.settled"
	routingKeyFailed  = "payment.failed"

	dialTimeout = 10 * time.Second
)

// Publisher emits payment lifecycle events to a durable topic exchange.
// Implements ports.EventPublisher.
type Publisher struct {
	conn   *amqp091.Connection
	logger *zap.Logger

	mu      sync.Mutex
	channel *amqp091.Channel
}

// NewPublisher connects to the broker and declares the payment events
// exchange. The dial is bounded so startup cannot hang on a dead broker.
func NewPublisher(amqpURL string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, logger: logger}, nil
}

func declareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

// PublishPaymentEvent publishes the event under a routing key derived from
// its outcome. A failed publish reopens the channel and retries once.
func (p *Publisher) PublishPaymentEvent(ctx context.Context, event ports.PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	routingKey := routingKeyFailed
	if event.Outcome == domain.OutcomeSucceeded {
		routingKey = routingKeySettled
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.publish(ctx, routingKey, body); err != nil {
		p.logger.Warn("publish failed, reopening channel",
			zap.String("routing_key", routingKey), zap.Error(err))
		if reopenErr := p.reopenChannel(); reopenErr != nil {
			return err
		}
		return p.publish(ctx, routingKey, body)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte) error {
	return p.channel.PublishWithContext(ctx,
		exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// reopenChannel replaces a broken channel. Callers hold the mutex.
func (p *Publisher) reopenChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

// Close tears down the channel and connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	return p.conn.Close()
}

// NoopPublisher drops events. It stands in when no broker is configured so
// the rest of the service need not care whether eventing is enabled.
type NoopPublisher struct {
	Logger *zap.Logger
}

func (p *NoopPublisher) PublishPaymentEvent(ctx context.Context, event ports.PaymentEvent) error {
	if p.Logger != nil {
		p.Logger.Debug("event publishing disabled, dropping payment event",
			zap.String("attempt_id", event.AttemptID),
			zap.String("outcome", string(event.Outcome)))
	}
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
