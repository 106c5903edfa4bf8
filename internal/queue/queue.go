// Package queue publishes reservation lifecycle events to RabbitMQ and
// runs the background consumer that forwards them to a delivery sink.
// Publish failures never interrupt the reservation flow; the service
// logs them and moves on.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/harborview/booking/pkg/booking"
)

const (
	// EventQueueName is the durable queue carrying reservation events.
	EventQueueName = "reservation.events"

	contentTypeJSON = "application/json"
	prefetchCount   = 50
)

// Event is the wire form of a reservation notification.
type Event struct {
	Kind          string `json:"kind"`
	ReservationID string `json:"reservation_id"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	GuestName     string `json:"guest_name"`
	RoomNumber    int    `json:"room_number"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

func eventFromNotification(notification booking.Notification) Event {
	return Event{
		Kind:          string(notification.Kind),
		ReservationID: notification.ReservationID,
		UserID:        notification.UserID,
		Email:         notification.Email,
		GuestName:     notification.GuestName,
		RoomNumber:    notification.RoomNumber,
		CheckIn:       notification.CheckIn.String(),
		CheckOut:      notification.CheckOut.String(),
		AmountCents:   notification.AmountCents.Int64(),
		Currency:      notification.Currency,
	}
}

func (event Event) notification() (booking.Notification, error) {
	checkIn, err := booking.ParseDate(event.CheckIn)
	if err != nil {
		return booking.Notification{}, fmt.Errorf("event check_in: %w", err)
	}
	checkOut, err := booking.ParseDate(event.CheckOut)
	if err != nil {
		return booking.Notification{}, fmt.Errorf("event check_out: %w", err)
	}
	return booking.Notification{
		Kind:          booking.NotificationKind(event.Kind),
		ReservationID: event.ReservationID,
		UserID:        event.UserID,
		Email:         event.Email,
		GuestName:     event.GuestName,
		RoomNumber:    event.RoomNumber,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		AmountCents:   booking.AmountCents(event.AmountCents),
		Currency:      event.Currency,
	}, nil
}

// Publisher forwards notifications to the broker as persistent
// messages on the event queue.
type Publisher struct {
	conn   *amqp.Connection
	logger *zap.Logger
}

// NewPublisher dials the broker and declares the event queue.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = channel.Close() }()
	if _, err := channel.QueueDeclare(EventQueueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// Notify publishes one event. Implements the notification sink
// contract so the reservation service can treat the broker as just
// another sink.
func (publisher *Publisher) Notify(ctx context.Context, notification booking.Notification) error {
	body, err := json.Marshal(eventFromNotification(notification))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel, err := publisher.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = channel.Close() }()
	err = channel.PublishWithContext(ctx, "", EventQueueName, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (publisher *Publisher) Close() error {
	return publisher.conn.Close()
}

// Consumer drains the event queue and hands each event to a sink,
// typically the mailer. Messages the sink rejects are nacked without
// requeue so a poison message cannot wedge the queue.
type Consumer struct {
	url    string
	sink   booking.NotificationSink
	logger *zap.Logger
}

// NewConsumer returns a Consumer bound to a delivery sink.
func NewConsumer(url string, sink booking.NotificationSink, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, sink: sink, logger: logger}
}

// Run consumes until the context ends, reconnecting with backoff after
// broker failures.
func (consumer *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(consumer.url)
		if err != nil {
			consumer.logger.Warn("broker dial failed",
				zap.Error(err),
				zap.Duration("retry_in", backoff))
			if !sleepContext(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		if err := consumer.consumeLoop(ctx, conn); err != nil {
			consumer.logger.Warn("consume loop ended", zap.Error(err))
		}
		_ = conn.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		if !sleepContext(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (consumer *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = channel.Close() }()

	if err := channel.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := channel.QueueDeclare(EventQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	deliveries, err := channel.Consume(EventQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, open := <-deliveries:
			if !open {
				return fmt.Errorf("delivery channel closed")
			}
			if err := consumer.handle(ctx, delivery.Body); err != nil {
				consumer.logger.Warn("event handling failed", zap.Error(err))
				_ = delivery.Nack(false, false)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (consumer *Consumer) handle(ctx context.Context, body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	notification, err := event.notification()
	if err != nil {
		return err
	}
	return consumer.sink.Notify(ctx, notification)
}

func sleepContext(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
