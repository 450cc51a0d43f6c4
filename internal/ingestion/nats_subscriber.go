package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MemeLedger/internal/event"
	"MemeLedger/internal/observability"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	// EventsStream holds decoded chain events, one subject per event type:
	// memeledger.events.<type>.<emitter>.
	EventsStream  = "MEMELEDGER_EVENTS"
	EventsSubject = "memeledger.events.>"
)

// subjectTokens maps the <type> subject token onto event types.
var subjectTokens = map[string]event.EventType{
	"new_token":    event.EventTypeNewToken,
	"bonded":       event.EventTypeBonded,
	"trade":        event.EventTypeTrade,
	"pair_created": event.EventTypePairCreated,
	"transfer":     event.EventTypeTransfer,
}

// EventTypeFromSubject extracts the event type from memeledger.events.<type>[.…].
func EventTypeFromSubject(subject string) event.EventType {
	parts := strings.SplitN(subject, ".", 4)
	if len(parts) < 3 || parts[0] != "memeledger" || parts[1] != "events" {
		return event.EventTypeUnknown
	}
	if et, ok := subjectTokens[parts[2]]; ok {
		return et
	}
	return event.EventTypeUnknown
}

// SubjectFor is the inverse of EventTypeFromSubject.
func SubjectFor(et event.EventType) string {
	for token, t := range subjectTokens {
		if t == et {
			return "memeledger.events." + token
		}
	}
	return "memeledger.events.unknown"
}

// RawEvent is a message pulled from NATS, not yet parsed.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
	TermFunc  func() // Call for payloads that can never be processed
}

// NATSSubscriber consumes the events stream and feeds raw messages to the
// pump in stream order. A single durable consumer covers every event type so
// a token's creation is never overtaken by its first trade.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumer  jetstream.ConsumeContext
	log       zerolog.Logger
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent, log zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
		log:       log,
	}
}

// Subscribe creates the durable consumer and starts delivery.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, durable string) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, EventsStream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: EventsSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		raw := RawEvent{
			Subject:   msg.Subject(),
			Data:      msg.Data(),
			Timestamp: time.Now(),
			AckFunc:   func() { _ = msg.Ack() },
			NakFunc:   func() { _ = msg.Nak() },
			TermFunc:  func() { _ = msg.Term() },
		}

		select {
		case ns.eventChan <- raw:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", durable, err)
	}

	ns.consumer = cc
	ns.log.Info().Str("subject", EventsSubject).Str("consumer", durable).Msg("subscribed")
	return nil
}

// Stop gracefully stops the consumer.
func (ns *NATSSubscriber) Stop() {
	if ns.consumer != nil {
		ns.consumer.Stop()
	}
	ns.log.Info().Msg("NATS subscriber stopped")
}

// EnsureStreams creates the events and watch streams if they don't exist.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      EventsStream,
			Subjects:  []string{EventsSubject},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:       WatchStream,
			Subjects:   []string{WatchSubject},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			Duplicates: 72 * time.Hour,
			Replicas:   1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("memeledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

// Handler applies one event.
type Handler interface {
	ProcessEvent(ctx context.Context, evt event.Event) error
}

// Pump parses raw messages and hands them to h in arrival order.
// Unparseable or invalid payloads are terminated and skipped. Any other
// processing error naks the message and stops the pump, so later messages are
// not applied ahead of the failed one.
func Pump(ctx context.Context, in <-chan RawEvent, h Handler, metrics *observability.Metrics, log zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-in:
			if !ok {
				return nil
			}
			if err := pumpOne(ctx, raw, h, metrics, log); err != nil {
				return err
			}
		}
	}
}

func pumpOne(ctx context.Context, raw RawEvent, h Handler, metrics *observability.Metrics, log zerolog.Logger) error {
	outcome := func(o string) {
		if metrics != nil {
			metrics.IngestMessages.WithLabelValues("nats", o).Inc()
		}
	}

	evt, err := ParseRawEvent(raw, EventTypeFromSubject(raw.Subject))
	if err != nil {
		outcome("invalid")
		log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping unparseable message")
		call(raw.TermFunc)
		return nil
	}

	if err := h.ProcessEvent(ctx, evt); err != nil {
		if errors.Is(err, event.ErrInvalidEvent) {
			outcome("invalid")
			log.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping invalid event")
			call(raw.TermFunc)
			return nil
		}
		outcome("failed")
		call(raw.NakFunc)
		return err
	}

	outcome("ok")
	call(raw.AckFunc)
	return nil
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}
