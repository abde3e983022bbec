// Package consumer reads activity events from Kafka and hands them to handlers.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/segmentio/kafka-go"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	TenantID      string
	UserID        string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// ErrMissingEventType marks a record without the event_type header.
var ErrMissingEventType = errors.New("consumer: missing event_type header")

const (
	defaultAttempts = 3
	defaultBackoff  = 200 * time.Millisecond
)

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry sets how many times a failing handler is invoked for one record and the
// initial pause between attempts, doubled after each failure.
func WithRetry(attempts int, initial time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		if initial >= 0 {
			p.backoff = initial
		}
	}
}

// Processor pulls framed activity events from Kafka and dispatches them to a Handler.
// Records are committed once handled; malformed records are committed and skipped; a
// record whose handler keeps failing stays uncommitted and is redelivered after a
// restart or rebalance.
type Processor struct {
	reader   Reader
	handler  Handler
	logger   *log.Logger
	attempts int
	backoff  time.Duration
}

func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		logger:   log.NewWithOptions(os.Stderr, log.Options{Prefix: "consumer"}),
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records until ctx is cancelled or the reader reports a context error.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch", "err", err)
			continue
		}

		msg, err := decodeMessage(record)
		if err != nil {
			p.logger.Error("skipping malformed record", "topic", record.Topic, "partition", record.Partition, "offset", record.Offset, "err", err)
			recordDecodeError(record.Topic)
			p.commit(ctx, record)
			continue
		}

		if err := p.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("handler failed", "event_type", msg.EventType, "tenant", msg.TenantID, "offset", msg.Offset, "attempts", p.attempts, "err", err)
			recordHandlerError(msg)
			continue
		}
		if p.commit(ctx, record) {
			recordProcessed(msg)
		}
	}
}

func (p *Processor) handle(ctx context.Context, msg Message) error {
	attempt := 0
	op := func() error {
		attempt++
		return p.handler.Handle(ctx, msg)
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Debug("retrying handler", "event_type", msg.EventType, "attempt", attempt, "wait", wait, "err", err)
	}
	return backoff.RetryNotify(op, p.retryPolicy(ctx), notify)
}

// retryPolicy doubles the pause after every failed attempt, without jitter, and gives
// up after p.attempts calls or when ctx ends.
func (p *Processor) retryPolicy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.backoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = 32 * p.backoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.attempts-1)), ctx)
}

func (p *Processor) commit(ctx context.Context, record kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, record); err != nil {
		p.logger.Warn("commit", "offset", record.Offset, "err", err)
		return false
	}
	return true
}

func decodeMessage(record kafka.Message) (Message, error) {
	schemaID, payload, err := events.Unframe(record.Value)
	if err != nil {
		return Message{}, err
	}
	eventType := header(record, events.HeaderEventType)
	if eventType == "" {
		return Message{}, ErrMissingEventType
	}
	return Message{
		Topic:         record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Timestamp:     record.Time,
		EventType:     eventType,
		TenantID:      header(record, events.HeaderTenantID),
		UserID:        header(record, events.HeaderUserID),
		SchemaSubject: header(record, events.HeaderSchemaSubject),
		SchemaID:      schemaID,
		Payload:       json.RawMessage(payload),
	}, nil
}

func header(record kafka.Message, key string) string {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
