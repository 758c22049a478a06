package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"topgun/internal/shared/config"
	"topgun/pkg/logger"

	"github.com/IBM/sarama"
)

// PaymentEventHandler reacts to one consumed payment event
type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, event *PaymentEvent) error
}

type ConsumerConfig struct {
	Brokers              []string
	GroupID              string
	Topics               []string
	SessionTimeoutMs     int
	HeartbeatMs          int
	RetryBackoffMs       int
	MaxProcessingTime    time.Duration
	AutoCommit           bool
	OffsetOldest         bool
	MaxRetries           int
	RetryBackoffDuration time.Duration
}

func NewConsumerConfig(cfg config.KafkaConfig) *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              cfg.Brokers,
		GroupID:              "topgun-payment-audit",
		Topics:               []string{cfg.PaymentEventsTopic},
		SessionTimeoutMs:     30000,
		HeartbeatMs:          3000,
		RetryBackoffMs:       100,
		MaxProcessingTime:    time.Minute,
		AutoCommit:           true,
		OffsetOldest:         false,
		MaxRetries:           cfg.RetryMax,
		RetryBackoffDuration: time.Second,
	}
}

// PaymentEventConsumer runs a consumer group over the payment events topic
type PaymentEventConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	handler       PaymentEventHandler
	wg            sync.WaitGroup
}

func NewPaymentEventConsumer(cfg *ConsumerConfig, handler PaymentEventHandler) (*PaymentEventConsumer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(cfg.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(cfg.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Retry.Backoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = cfg.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true

	if cfg.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if cfg.AutoCommit {
		saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
		saramaConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second
	}

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &PaymentEventConsumer{
		consumerGroup: consumerGroup,
		config:        cfg,
		handler:       handler,
	}, nil
}

// Start consumes until ctx is cancelled
func (c *PaymentEventConsumer) Start(ctx context.Context) {
	log := logger.GetDefault()
	log.Info("starting payment event consumer", "topics", c.config.Topics, "group", c.config.GroupID)

	go func() {
		for err := range c.consumerGroup.Errors() {
			log.Error("consumer group error", "error", err)
		}
	}()

	handler := &consumerGroupHandler{handler: c.handler, config: c.config}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumerGroup.Consume(ctx, c.config.Topics, handler); err != nil {
				log.Error("error consuming payment events", "error", err)
				time.Sleep(time.Second)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// Stop waits for the consume loop to exit and closes the group
func (c *PaymentEventConsumer) Stop() error {
	c.wg.Wait()
	if err := c.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

type consumerGroupHandler struct {
	handler PaymentEventHandler
	config  *ConsumerConfig
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			if err := h.processMessage(session.Context(), message); err != nil {
				logger.GetDefault().Error("failed to process payment event",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err,
				)
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var event PaymentEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal payment event: %w", err)
	}
	return h.executeWithRetry(ctx, &event)
}

func (h *consumerGroupHandler) executeWithRetry(ctx context.Context, event *PaymentEvent) error {
	maxRetries := h.config.MaxRetries
	backoff := h.config.RetryBackoffDuration

	for attempt := 0; ; attempt++ {
		err := h.handler.HandlePaymentEvent(ctx, event)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		delay := backoff * time.Duration(1<<attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AuditHandler writes every consumed payment event to the structured log
type AuditHandler struct {
	Logger *logger.Logger
}

func (a AuditHandler) HandlePaymentEvent(ctx context.Context, event *PaymentEvent) error {
	log := a.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	switch event.Type {
	case PaymentEventApproved:
		log.LogPaymentApproved(ctx, event.PaymentNo, event.TID, event.UserID, event.Amount)
	case PaymentEventCancelled, PaymentEventItemCancelled:
		var detailNo int64
		if event.DetailNo != nil {
			detailNo = *event.DetailNo
		}
		log.LogPaymentCancelled(ctx, event.PaymentNo, detailNo, event.Amount, event.Remaining, event.UserID)
	default:
		return fmt.Errorf("unknown payment event type %q", event.Type)
	}
	return nil
}
