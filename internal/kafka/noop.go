package kafka

import "codemart/internal/models"

// NopProducer satisfies the event publisher contracts when Kafka is
// disabled, e.g. in local development without a broker.
type NopProducer struct{}

func (NopProducer) PublishOrderCreated(models.Order) error    { return nil }
func (NopProducer) PublishOrderCompleted(models.Order) error  { return nil }
func (NopProducer) PublishReviewApproved(models.Review) error { return nil }
