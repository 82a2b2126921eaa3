package repository

import (
	"context"

	"PriceSight/internal/domain/models"
	pkgkafka "PriceSight/pkg/kafka"
	"PriceSight/pkg/util"
)

// BarMessage is the wire format of the daily bar ingest topic.
type BarMessage struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	C      float64 `json:"c"`
}

// KafkaBarPublisher publishes daily closes to the ingest topic, keyed by symbol.
type KafkaBarPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaBarPublisher creates a bar publisher.
func NewKafkaBarPublisher(producer *pkgkafka.Producer, topic string) *KafkaBarPublisher {
	return &KafkaBarPublisher{producer: producer, topic: topic}
}

// PublishBars sends one message per point.
func (p *KafkaBarPublisher) PublishBars(ctx context.Context, symbol string, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, BarMessages(symbol, points))
}

// BarMessages converts points to producer messages.
func BarMessages(symbol string, points []models.PricePoint) []pkgkafka.Message {
	symbol = util.NormalizeTicker(symbol)
	msgs := make([]pkgkafka.Message, len(points))
	for i, pt := range points {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(symbol),
			Value: BarMessage{Symbol: symbol, T: pt.Date.Unix(), C: pt.Close},
		}
	}
	return msgs
}
