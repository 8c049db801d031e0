package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/savdobot/core/logger"

	"github.com/segmentio/kafka-go"
)

const (
	defaultTopic        = "savdobot.events"
	defaultBuffer       = 1024
	defaultWriteTimeout = 5 * time.Second
	batchTimeout        = 10 * time.Millisecond
)

var (
	// ErrBufferFull is returned by Publish when the outbound buffer has no room.
	ErrBufferFull = errors.New("events: publish buffer full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("events: publisher closed")
)

// KafkaConfig selects the brokers and topic. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic        string        `yaml:"topic" envconfig:"KAFKA_TOPIC"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"KAFKA_WRITE_TIMEOUT"`
	// Buffer bounds the envelopes waiting for the broker; 0 means 1024.
	Buffer int `yaml:"buffer" envconfig:"KAFKA_BUFFER"`
}

// Enabled reports whether brokers are configured.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes envelopes to a single topic keyed by Envelope.Key. Publish
// only queues; one background goroutine writes in order and logs failures.
type Kafka struct {
	w       MessageWriter
	timeout time.Duration
	inbox   chan kafka.Message
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewKafka creates a publisher writing to cfg.Topic.
func NewKafka(cfg KafkaConfig) *Kafka {
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}
	return newKafka(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: batchTimeout,
	}, cfg.WriteTimeout, cfg.Buffer)
}

// NewKafkaWithWriter wraps an existing writer with the default buffer.
func NewKafkaWithWriter(w MessageWriter, timeout time.Duration) *Kafka {
	return newKafka(w, timeout, defaultBuffer)
}

func newKafka(w MessageWriter, timeout time.Duration, buffer int) *Kafka {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	k := &Kafka{
		w:       w,
		timeout: timeout,
		inbox:   make(chan kafka.Message, buffer),
		done:    make(chan struct{}),
	}
	go k.run()
	return k
}

// Publish queues env without waiting for the broker.
func (k *Kafka) Publish(_ context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", env.EventType, err)
	}
	msg := kafka.Message{
		Key:   []byte(env.Key),
		Value: body,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrClosed
	}
	select {
	case k.inbox <- msg:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrBufferFull, env.EventType)
	}
}

func (k *Kafka) run() {
	defer close(k.done)
	for msg := range k.inbox {
		k.write(msg)
	}
}

func (k *Kafka) write(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	eventType := ""
	if len(msg.Headers) > 0 {
		eventType = string(msg.Headers[0].Value)
	}
	start := time.Now()
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		logger.Warn(ctx, "events", "event.publish_failed",
			slog.String("type", eventType),
			slog.String("key", string(msg.Key)),
			slog.Duration("duration", logger.Took(start)),
			slog.Any("err", err),
		)
		return
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "events", "event.published",
			slog.String("type", eventType),
			slog.String("key", string(msg.Key)),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}

// Close stops accepting envelopes, writes the queued ones and closes the writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.inbox)
	k.mu.Unlock()

	<-k.done
	return k.w.Close()
}
