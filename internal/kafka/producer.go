package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"codemart/internal/config"
	"codemart/internal/logger"
	"codemart/internal/models"

	"github.com/segmentio/kafka-go"
)

// Producer streams marketplace events. Each event type gets its own
// topic so downstream consumers can subscribe selectively.
type Producer struct {
	orderCreated   *kafka.Writer
	orderCompleted *kafka.Writer
	reviewApproved *kafka.Writer
	logger         *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   topic,
		})
	}
	return &Producer{
		orderCreated:   newWriter(topics.OrderCreated),
		orderCompleted: newWriter(topics.OrderCompleted),
		reviewApproved: newWriter(topics.ReviewApproved),
		logger:         log,
	}
}

func (p *Producer) publish(w *kafka.Writer, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.logger.LogKafka("PUBLISH", w.Topic, string(msgBytes))

	return w.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishOrderCreated streams a pending order awaiting payment.
func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(p.orderCreated, order.ID, order)
}

// PublishOrderCompleted streams a settled order carrying its license key.
func (p *Producer) PublishOrderCompleted(order models.Order) error {
	return p.publish(p.orderCompleted, order.ID, order)
}

// PublishReviewApproved streams a review that just went public.
func (p *Producer) PublishReviewApproved(rev models.Review) error {
	return p.publish(p.reviewApproved, rev.ID, rev)
}

func (p *Producer) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.orderCreated, p.orderCompleted, p.reviewApproved} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close kafka writer for %s: %w", w.Topic, err)
		}
	}
	return firstErr
}
