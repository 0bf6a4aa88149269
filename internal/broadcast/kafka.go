package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each broadcast as a JSON event keyed by pair.
type KafkaNotifier struct {
	w     messageWriter
	topic string
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		topic: topic,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
			Balancer:               &kafka.Hash{},
		},
	}
}

// RateEvent is the payload written to Kafka.
type RateEvent struct {
	Pair          string    `json:"pair"`
	Bid           string    `json:"bid"`
	Ask           string    `json:"ask"`
	Last          string    `json:"last"`
	SpreadPercent string    `json:"spread_percent"`
	SecondaryLast string    `json:"secondary_last"`
	Power         string    `json:"power"`
	CalculatedAt  time.Time `json:"calculated_at"`
	Text          string    `json:"text"`
}

const eventPair = "USDTJPY"

func (k *KafkaNotifier) Notify(ctx context.Context, m Message) error {
	if m.Rate == nil {
		return errors.New("kafka: message without rate")
	}
	r := m.Rate
	b, err := json.Marshal(RateEvent{
		Pair:          eventPair,
		Bid:           r.Bid.StringFixed(2),
		Ask:           r.Ask.StringFixed(2),
		Last:          r.Last.StringFixed(2),
		SpreadPercent: r.SpreadPercent.StringFixed(2),
		SecondaryLast: r.SecondaryLast.StringFixed(2),
		Power:         r.Power.String(),
		CalculatedAt:  r.CalculatedAt,
		Text:          m.Text,
	})
	if err != nil {
		return fmt.Errorf("kafka: encode: %w", err)
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(eventPair),
		Value: b,
		Time:  r.CalculatedAt,
	}); err != nil {
		return fmt.Errorf("kafka: write %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error { return k.w.Close() }
