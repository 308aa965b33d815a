// Package messaging publishes tournament-processed events to RabbitMQ so
// downstream consumers can refresh derived views. Publishing is strictly
// best-effort: a run that already committed never fails because the broker
// is down.
package messaging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tourneyrank/processor/internal/config"
)

// defaultPriority is attached to every published message.
const defaultPriority = 5

// TournamentProcessedMessage matches the payload downstream stats consumers
// expect.
type TournamentProcessedMessage struct {
	RequestedAt   time.Time `json:"requestedAt"`
	CorrelationID string    `json:"correlationId"`
	Priority      uint8     `json:"priority"`
	TournamentID  int       `json:"tournamentId"`
}

// Publisher owns one AMQP connection and channel. The exchange shares its
// name with the routing key and is declared durable fanout, matching the
// consumer side.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// Connect dials the broker and declares the exchange.
func Connect(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.AMQPURL())
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(
		cfg.AMQPRoutingKey, // name
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", cfg.AMQPRoutingKey, err)
	}
	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: cfg.AMQPRoutingKey,
		logger:   logger,
	}, nil
}

// PublishTournamentProcessed sends one event for the tournament. A blank
// correlation id is replaced with a fresh one.
func (p *Publisher) PublishTournamentProcessed(ctx context.Context, tournamentID int, correlationID string) error {
	if correlationID == "" {
		correlationID = newID()
	}
	msg := TournamentProcessedMessage{
		RequestedAt:   time.Now().UTC(),
		CorrelationID: correlationID,
		Priority:      defaultPriority,
		TournamentID:  tournamentID,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		p.exchange, // routing key, ignored by fanout
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			MessageId:     newID(),
			CorrelationId: correlationID,
			Priority:      defaultPriority,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     msg.RequestedAt,
			Body:          payload,
		})
	if err != nil {
		return fmt.Errorf("publish tournament %d: %w", tournamentID, err)
	}
	p.logger.Debug("published tournament processed event",
		"tournament_id", tournamentID, "correlation_id", correlationID)
	return nil
}

// Close shuts the channel and connection down.
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// newID returns a random 128-bit hex identifier.
func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
