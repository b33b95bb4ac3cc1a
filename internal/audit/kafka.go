package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
)

var ErrKafkaDisabled = errors.New("kafka disabled")

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// KafkaSink publishes each event as a JSON message keyed by its target id,
// so events about the same sale land on the same partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" {
		return nil, ErrKafkaDisabled
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		MaxAttempts:  3,
	}}, nil
}

func (k *KafkaSink) Emit(ctx context.Context, event domain.AuditEvent) error {
	msg, err := eventMessage(event)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func eventMessage(event domain.AuditEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	key := event.TargetType + ":" + event.TargetID
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
		},
	}, nil
}
