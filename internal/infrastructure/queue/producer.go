package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marisec-auth/internal/domain"
	"github.com/segmentio/kafka-go"
)

// EventUserRegistered is the message key for a completed OTP-gated registration.
const EventUserRegistered = "user.registered"

const writeTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes user lifecycle events. A nil *Producer is valid and drops
// every event, which is how the service runs without KAFKA_BROKERS.
type Producer struct {
	writer messageWriter
	now    func() time.Time
}

// UserRegistered is the event payload. It never carries credentials.
type UserRegistered struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Plan       string    `json:"plan"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			WriteTimeout:           writeTimeout,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

// PublishUserRegistered writes the event keyed by user id so a user's events stay ordered.
func (p *Producer) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(UserRegistered{
		UserID:     u.UserID,
		Email:      u.Email,
		Username:   u.Username,
		Plan:       u.Subscription.Plan,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", EventUserRegistered, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(u.UserID),
		Value: payload,
		Time:  p.now(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventUserRegistered)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", EventUserRegistered, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
