package notifications

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"topgun/internal/shared/config"
	"topgun/pkg/logger"

	"github.com/IBM/sarama"
)

// PaymentEventPublisher publishes payment lifecycle events
type PaymentEventPublisher interface {
	Publish(ctx context.Context, event *PaymentEvent) error
	Close() error
}

// KafkaProducerConfig contains configuration for the Kafka payment event producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// NewKafkaProducerConfig builds the producer settings from app configuration
func NewKafkaProducerConfig(cfg config.KafkaConfig) *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          cfg.Brokers,
		Topic:            cfg.PaymentEventsTopic,
		RetryMax:         cfg.RetryMax,
		TimeoutMs:        10000,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000,
	}
}

func (c *KafkaProducerConfig) saramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = c.RequiredAcks
	saramaConfig.Producer.Compression = c.CompressionType
	saramaConfig.Producer.Retry.Max = c.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = c.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = c.MaxMessageBytes

	// Idempotent producer requires a single in-flight request
	if c.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner routes by payment number
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	return saramaConfig
}

// KafkaPaymentEventProducer handles publishing payment events to Kafka
type KafkaPaymentEventProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
}

// NewKafkaPaymentEventProducer dials the brokers and returns a ready producer
func NewKafkaPaymentEventProducer(cfg *KafkaProducerConfig) (*KafkaPaymentEventProducer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.GetDefault().Info("Kafka payment event producer created", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewPaymentEventProducer(producer, cfg), nil
}

// NewPaymentEventProducer wraps an existing sync producer
func NewPaymentEventProducer(producer sarama.SyncProducer, cfg *KafkaProducerConfig) *KafkaPaymentEventProducer {
	return &KafkaPaymentEventProducer{producer: producer, config: cfg}
}

// Publish sends one event and waits for the broker ack
func (p *KafkaPaymentEventProducer) Publish(ctx context.Context, event *PaymentEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.config.Topic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   p.createHeaders(event),
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send payment event to Kafka: %w", err)
	}

	logger.GetDefault().DebugContext(ctx, "payment event published",
		"topic", p.config.Topic,
		"partition", partition,
		"offset", offset,
		"type", event.Type,
		"payment_no", event.PaymentNo,
	)
	return nil
}

func (p *KafkaPaymentEventProducer) createHeaders(event *PaymentEvent) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("payment_no"), Value: []byte(event.GetPartitionKey())},
		{Key: []byte("user_id"), Value: []byte(event.UserID)},
		{Key: []byte("producer"), Value: []byte("topgun-payments")},
		{Key: []byte("occurred_at"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
	}

	if event.DetailNo != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("detail_no"),
			Value: []byte(strconv.FormatInt(*event.DetailNo, 10)),
		})
	}

	return headers
}

// Close closes the Kafka producer
func (p *KafkaPaymentEventProducer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
		logger.GetDefault().Info("Kafka payment event producer closed")
	}
	return nil
}

// NoopPublisher drops events; used when Kafka is disabled or unreachable
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *PaymentEvent) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }
