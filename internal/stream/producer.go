package stream

import (
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"

	"github.com/advisorly/reading-room/internal/domain"
)

// Producer publishes accepted transcript entries for downstream
// consumers (persistence, analytics). Best-effort: delivery failures are
// logged by the report handler and never reach the room.
type Producer interface {
	Produce(roomID string, msg domain.ChatMessage) error
	Close() error
}

type transcriptRecord struct {
	RoomID string `json:"roomId"`
	domain.ChatMessage
}

// KafkaProducer writes transcript records onto a kafka topic, keyed by
// room id for per-room partition ordering.
type KafkaProducer struct {
	producer *kafka.Producer
	topic    string
	log      zerolog.Logger
	doneCh   chan struct{}
}

func NewKafkaProducer(brokers, topic string, logger zerolog.Logger) (*KafkaProducer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaProducer{
		producer: p,
		topic:    topic,
		log:      logger,
		doneCh:   make(chan struct{}),
	}

	go kp.deliveryReportHandler()

	return kp, nil
}

func (kp *KafkaProducer) deliveryReportHandler() {
	for e := range kp.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			kp.log.Warn().Err(ev.TopicPartition.Error).Msg("transcript delivery failed")
		}
	}
	close(kp.doneCh)
}

func (kp *KafkaProducer) Produce(roomID string, msg domain.ChatMessage) error {
	value, err := json.Marshal(transcriptRecord{RoomID: roomID, ChatMessage: msg})
	if err != nil {
		return fmt.Errorf("failed to encode transcript record: %w", err)
	}

	err = kp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &kp.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(roomID),
		Value: value,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to produce transcript record: %w", err)
	}
	return nil
}

func (kp *KafkaProducer) Close() error {
	kp.producer.Flush(5000)
	kp.producer.Close()
	<-kp.doneCh
	return nil
}
