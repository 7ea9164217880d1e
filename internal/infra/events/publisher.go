package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	repo "marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 注文イベントをkafkaへ送る。キーは注文IDなので同じ注文のイベントは順番どおりに届く。
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

var _ repo.OrderEventPublisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer)
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev repo.OrderEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.OrderID, 10)),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KAFKA_BROKERSが無いとき
type NoopPublisher struct{}

var _ repo.OrderEventPublisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, repo.OrderEvent) error { return nil }
