package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"MemeLedger/internal/event"
	"MemeLedger/internal/observability"
	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	WatchStream  = "MEMELEDGER_WATCH"
	WatchSubject = "memeledger.watch.>"
)

// JetStreamPublisher is the publishing half of jetstream.JetStream.
type JetStreamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// WatchRequest asks the upstream log shipper to start forwarding a
// contract's logs.
type WatchRequest struct {
	Address string `json:"address"`
	Kind    string `json:"kind"`
}

// WatchPublisher implements state.Subscriber when events arrive over NATS:
// each watch becomes a message on memeledger.watch.<kind>. The message id
// is address:kind, so JetStream drops repeats inside the dedup window.
type WatchPublisher struct {
	js      JetStreamPublisher
	metrics *observability.Metrics
	log     zerolog.Logger
}

var _ state.Subscriber = (*WatchPublisher)(nil)

func NewWatchPublisher(js JetStreamPublisher, metrics *observability.Metrics, log zerolog.Logger) *WatchPublisher {
	return &WatchPublisher{js: js, metrics: metrics, log: log}
}

func (wp *WatchPublisher) Watch(ctx context.Context, addr common.Address, kinds ...state.WatchKind) error {
	for _, kind := range kinds {
		req := WatchRequest{Address: event.AddressID(addr), Kind: kind.String()}
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal watch request: %w", err)
		}

		msgID := req.Address + ":" + req.Kind
		ack, err := wp.js.Publish(ctx, "memeledger.watch."+req.Kind, data, jetstream.WithMsgID(msgID))
		if err != nil {
			return fmt.Errorf("publish watch %s: %w", msgID, err)
		}
		if ack != nil && ack.Duplicate {
			continue
		}
		if wp.metrics != nil {
			wp.metrics.WatchedAddresses.WithLabelValues(req.Kind).Inc()
		}
		wp.log.Debug().Str("address", req.Address).Str("kind", req.Kind).Msg("watch requested")
	}
	return nil
}
