package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"MemeLedger/internal/event"
	"MemeLedger/internal/observability"
	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// LogClient is the subset of ethclient.Client the watcher polls.
type LogClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

var _ LogClient = (*ethclient.Client)(nil)

// Dial connects to a JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// Handler applies one decoded event. It must not return before the event's
// writes are durable, since the cursor advances past it.
type Handler interface {
	ProcessEvent(ctx context.Context, evt event.Event) error
}

type WatcherConfig struct {
	StartBlock    uint64
	Confirmations uint64
	PollInterval  time.Duration
	BatchSize     uint64 // blocks per FilterLogs window

	// Cursors, when set, keeps the next block to poll under CursorName
	// across restarts.
	Cursors    state.CursorStore
	CursorName string
}

// Watcher polls logs of a dynamic set of contracts and hands decoded events
// to a Handler in (block, logIndex) order. It implements state.Subscriber.
//
// When a handled event widens the watch set, the window stops after that
// event and the next poll restarts at its block with the wider set, so logs
// of new addresses are never applied after later logs of old ones. Events
// re-read this way are duplicates the handler already applied.
type Watcher struct {
	client  LogClient
	decoder *Decoder
	cfg     WatcherConfig
	metrics *observability.Metrics
	log     zerolog.Logger

	mu      sync.Mutex
	watched map[common.Address]map[state.WatchKind]struct{}
	next    uint64
	// last is the block of the last handled event, or the first polled block.
	last    uint64
	grown   bool
	started bool
}

var _ state.Subscriber = (*Watcher)(nil)

func NewWatcher(client LogClient, decoder *Decoder, cfg WatcherConfig, metrics *observability.Metrics, log zerolog.Logger) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}
	if cfg.CursorName == "" {
		cfg.CursorName = "rpc"
	}
	return &Watcher{
		client:  client,
		decoder: decoder,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
		watched: make(map[common.Address]map[state.WatchKind]struct{}),
		next:    cfg.StartBlock,
	}
}

// Watch adds addr to the polled set. Repeated calls are no-ops.
func (w *Watcher) Watch(_ context.Context, addr common.Address, kinds ...state.WatchKind) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	set, ok := w.watched[addr]
	if !ok {
		set = make(map[state.WatchKind]struct{}, len(kinds))
		w.watched[addr] = set
	}
	for _, k := range kinds {
		if _, dup := set[k]; dup {
			continue
		}
		set[k] = struct{}{}
		if w.started {
			w.grown = true
		}
		if w.metrics != nil {
			w.metrics.WatchedAddresses.WithLabelValues(k.String()).Inc()
		}
	}
	return nil
}

// NextBlock returns the first block the next poll will read.
func (w *Watcher) NextBlock() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}

// Run polls until ctx is cancelled, a poll fails or h returns an error.
// It polls again at once after a window that handled events.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		n, err := w.Poll(ctx, h)
		if err != nil {
			return err
		}
		if n > 0 {
			w.log.Debug().Int("events", n).Uint64("next_block", w.NextBlock()).Msg("poll complete")
			if ctx.Err() == nil {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads one window of confirmed blocks and hands its events to h. It
// returns the number of events handled.
func (w *Watcher) Poll(ctx context.Context, h Handler) (int, error) {
	if err := w.resume(ctx); err != nil {
		return 0, err
	}

	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	if head < w.cfg.Confirmations {
		return 0, nil
	}
	safe := head - w.cfg.Confirmations

	w.mu.Lock()
	if w.grown {
		// widened between polls, e.g. by an admin injection
		w.grown = false
		if w.last < w.next {
			w.next = w.last
		}
	}
	from := w.next
	addrs := make([]common.Address, 0, len(w.watched))
	for a := range w.watched {
		addrs = append(addrs, a)
	}
	w.mu.Unlock()

	if w.metrics != nil && safe >= from {
		w.metrics.ChainPollLag.Set(float64(safe - from))
	}
	if from > safe || len(addrs) == 0 {
		return 0, nil
	}
	to := safe
	if to-from+1 > w.cfg.BatchSize {
		to = from + w.cfg.BatchSize - 1
	}

	logs, err := w.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: addrs,
	})
	if err != nil {
		return 0, fmt.Errorf("filter logs [%d,%d]: %w", from, to, err)
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	times := make(map[uint64]time.Time)
	handled := 0
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		kind, ok := w.kindFor(lg)
		if !ok {
			continue
		}
		ts, err := w.blockTime(ctx, lg.BlockNumber, times)
		if err != nil {
			return handled, err
		}

		evt, err := w.decoder.Decode(lg, kind, ts)
		if err != nil {
			if !errors.Is(err, ErrUnknownLog) {
				w.ingest("invalid")
				w.log.Warn().Err(err).
					Str("address", lg.Address.Hex()).
					Str("tx", lg.TxHash.Hex()).
					Uint("log_index", lg.Index).
					Msg("undecodable log skipped")
			}
			continue
		}

		if err := h.ProcessEvent(ctx, evt); err != nil {
			w.ingest("failed")
			return handled, fmt.Errorf("block %d log %d: %w", lg.BlockNumber, lg.Index, err)
		}
		handled++
		w.ingest("ok")

		w.mu.Lock()
		w.last = lg.BlockNumber
		grown := w.grown
		if grown {
			w.grown = false
			w.next = lg.BlockNumber
		}
		w.mu.Unlock()

		if grown {
			w.log.Debug().Uint64("block", lg.BlockNumber).Msg("watch set widened; re-reading from block")
			return handled, w.saveCursor(ctx, lg.BlockNumber)
		}
	}

	w.mu.Lock()
	w.next = to + 1
	w.mu.Unlock()
	return handled, w.saveCursor(ctx, to+1)
}

// resume loads the stored cursor before the first poll. A cursor behind
// StartBlock is ignored.
func (w *Watcher) resume(ctx context.Context) error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		return nil
	}

	next := w.cfg.StartBlock
	if w.cfg.Cursors != nil {
		stored, ok, err := w.cfg.Cursors.LoadCursor(ctx, w.cfg.CursorName)
		if err != nil {
			return fmt.Errorf("load cursor: %w", err)
		}
		if ok && stored > next {
			next = stored
			w.log.Info().Uint64("block", stored).Msg("resuming from stored cursor")
		}
	}

	w.mu.Lock()
	w.next = next
	w.last = next
	w.started = true
	w.mu.Unlock()
	return nil
}

func (w *Watcher) saveCursor(ctx context.Context, block uint64) error {
	if w.cfg.Cursors == nil {
		return nil
	}
	if err := w.cfg.Cursors.SaveCursor(ctx, w.cfg.CursorName, block); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func (w *Watcher) kindFor(lg types.Log) (state.WatchKind, bool) {
	if len(lg.Topics) == 0 {
		return 0, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, k := range []state.WatchKind{
		state.WatchTokenFactory, state.WatchPairs, state.WatchDexTrades, state.WatchCurveTrades, state.WatchTransfers,
	} {
		if _, ok := w.watched[lg.Address][k]; ok && w.decoder.Accepts(k, lg.Topics[0]) {
			return k, true
		}
	}
	return 0, false
}

func (w *Watcher) blockTime(ctx context.Context, number uint64, cache map[uint64]time.Time) (time.Time, error) {
	if ts, ok := cache[number]; ok {
		return ts, nil
	}
	header, err := w.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, fmt.Errorf("header %d: %w", number, err)
	}
	ts := time.Unix(int64(header.Time), 0).UTC()
	cache[number] = ts
	return ts, nil
}

func (w *Watcher) ingest(outcome string) {
	if w.metrics != nil {
		w.metrics.IngestMessages.WithLabelValues("rpc", outcome).Inc()
	}
}
