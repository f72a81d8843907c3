package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	Brokers         []string
	Topic           string
	PollEvery       time.Duration
	BatchSize       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// envelope is the Kafka message value. Payload is passed through as raw JSON.
type envelope struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	AppointmentID string          `json:"appointment_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Publisher struct {
	store     Store
	writer    MessageWriter
	breaker   *gobreaker.CircuitBreaker[struct{}]
	logger    *slog.Logger
	topic     string
	pollEvery time.Duration
	batchSize int
}

// NewKafkaWriter returns nil when no brokers are configured.
func NewKafkaWriter(brokers []string, topic string) MessageWriter {
	if len(brokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewPublisher(store Store, writer MessageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka-" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Publisher{
		store:     store,
		writer:    writer,
		breaker:   breaker,
		logger:    logger,
		topic:     cfg.Topic,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run publishes until ctx is done. It returns immediately when no writer is configured.
func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("close kafka writer failed", "err", err)
		}
	}()

	p.logger.Info("outbox publisher started", "topic", p.topic, "poll_every", p.pollEvery, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopping")
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			switch {
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				p.logger.Debug("outbox publish skipped, breaker open")
			case err != nil:
				p.logger.Error("outbox publish failed", "err", err)
			case n > 0:
				p.logger.Info("outbox events published", "count", n)
			}
		}
	}
}

// PublishBatch sends one batch of unpublished events and reports how many went out.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.store.Claim(ctx, p.batchSize, func(ctx context.Context, records []Record) error {
		msgs, err := toMessages(records)
		if err != nil {
			return err
		}

		_, err = p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.writer.WriteMessages(ctx, msgs...)
		})
		if err != nil {
			return err
		}
		published = len(msgs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

func toMessages(records []Record) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		env := envelope{
			ID:        r.ID,
			EventType: r.EventType,
			Payload:   json.RawMessage(r.Payload),
			CreatedAt: r.CreatedAt,
		}
		if len(env.Payload) == 0 {
			env.Payload = json.RawMessage("{}")
		}

		// keyed by appointment so one appointment's events stay ordered on a partition
		key := strconv.FormatInt(r.ID, 10)
		if r.AppointmentID != nil {
			env.AppointmentID = r.AppointmentID.String()
			key = env.AppointmentID
		}

		value, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("marshal event %d: %w", r.ID, err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(strconv.FormatInt(r.ID, 10))},
				{Key: "event_type", Value: []byte(r.EventType)},
			},
		})
	}
	return msgs, nil
}
