package ingestion

import (
	"context"
	"fmt"
	"time"

	"MemeLedger/internal/event"
)

// AdminIngestService provides manual event injection for operators, e.g. to
// replay a log the upstream shipper missed. Injected events go through the
// same parser and processor as NATS traffic and are deduplicated the same way.
type AdminIngestService struct {
	handler Handler
}

func NewAdminIngestService(handler Handler) *AdminIngestService {
	return &AdminIngestService{handler: handler}
}

// Inject parses payload as eventType ("Trade", "Transfer", ...) and applies it.
func (s *AdminIngestService) Inject(ctx context.Context, eventType string, payload []byte) (event.Event, error) {
	et := event.ParseEventType(eventType)
	if et == event.EventTypeUnknown {
		return nil, fmt.Errorf("%w: unknown event type %q", event.ErrInvalidEvent, eventType)
	}

	evt, err := ParseRawEvent(RawEvent{Subject: "admin", Data: payload, Timestamp: time.Now()}, et)
	if err != nil {
		return nil, err
	}
	if err := s.handler.ProcessEvent(ctx, evt); err != nil {
		return evt, err
	}
	return evt, nil
}
