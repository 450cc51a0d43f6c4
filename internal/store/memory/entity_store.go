package memory

import (
	"context"
	"sort"
	"sync"

	"MemeLedger/internal/state"
	"MemeLedger/internal/store"
)

// Store is an in-memory implementation of state.EntityStore.
// Records are copied on the way in and on the way out.
type Store[T any, P store.Record[T]] struct {
	mu   sync.RWMutex
	data map[string]*T
}

// NewStore creates an empty store, e.g. NewStore[state.Token]().
func NewStore[T any, P store.Record[T]]() *Store[T, P] {
	return &Store[T, P]{data: make(map[string]*T)}
}

var _ state.EntityStore[state.Position] = (*Store[state.Position, *state.Position])(nil)

func (s *Store[T, P]) Load(_ context.Context, id string) (*T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, false, nil
	}
	return P(rec).Clone(), true, nil
}

func (s *Store[T, P]) Save(_ context.Context, rec *T) error {
	if rec == nil {
		return store.ErrInvalidInput
	}
	id := P(rec).EntityID()
	if id == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[id] = P(rec).Clone()
	return nil
}

// List returns every record ordered by id.
func (s *Store[T, P]) List(_ context.Context) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		out = append(out, P(s.data[id]).Clone())
	}
	return out, nil
}

func (s *Store[T, P]) putAll(recs []*T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.data[P(rec).EntityID()] = P(rec).Clone()
	}
}

// Len returns the number of stored records.
func (s *Store[T, P]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// ProcessedSet is an in-memory state.ProcessedStore.
type ProcessedSet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{keys: make(map[string]struct{})}
}

func (p *ProcessedSet) IsProcessed(_ context.Context, eventType, key string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.keys[eventType+":"+key]
	return ok, nil
}

func (p *ProcessedSet) MarkProcessed(_ context.Context, eventType, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[eventType+":"+key] = struct{}{}
	return nil
}

// Cursors is an in-memory state.CursorStore.
type Cursors struct {
	mu     sync.RWMutex
	blocks map[string]uint64
}

func NewCursors() *Cursors {
	return &Cursors{blocks: make(map[string]uint64)}
}

func (c *Cursors) LoadCursor(_ context.Context, name string) (uint64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	block, ok := c.blocks[name]
	return block, ok, nil
}

func (c *Cursors) SaveCursor(_ context.Context, name string, block uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[name] = block
	return nil
}

// Committer applies a changeset to the memory stores. Every record is
// checked before anything is written, so a rejected changeset leaves the
// stores untouched.
type Committer struct {
	mu        sync.Mutex
	tokens    *Store[state.Token, *state.Token]
	trades    *Store[state.Trade, *state.Trade]
	positions *Store[state.Position, *state.Position]
	holders   *Store[state.TokenHolder, *state.TokenHolder]
	users     *Store[state.User, *state.User]
	processed *ProcessedSet
}

func (c *Committer) Commit(ctx context.Context, cs *state.Changeset) error {
	if !valid(cs.Tokens) || !valid(cs.Trades) || !valid(cs.Positions) ||
		!valid(cs.Holders) || !valid(cs.Users) || cs.Key == "" {
		return store.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens.putAll(cs.Tokens)
	c.trades.putAll(cs.Trades)
	c.positions.putAll(cs.Positions)
	c.holders.putAll(cs.Holders)
	c.users.putAll(cs.Users)
	return c.processed.MarkProcessed(ctx, cs.EventType, cs.Key)
}

func valid[T any, P store.Record[T]](recs []*T) bool {
	for _, rec := range recs {
		if rec == nil || P(rec).EntityID() == "" {
			return false
		}
	}
	return true
}

// NewStores wires a complete in-memory backend.
func NewStores() state.Stores {
	c := &Committer{
		tokens:    NewStore[state.Token](),
		trades:    NewStore[state.Trade](),
		positions: NewStore[state.Position](),
		holders:   NewStore[state.TokenHolder](),
		users:     NewStore[state.User](),
		processed: NewProcessedSet(),
	}
	return state.Stores{
		Tokens:    c.tokens,
		Trades:    c.trades,
		Positions: c.positions,
		Holders:   c.holders,
		Users:     c.users,
		Processed: c.processed,
		Committer: c,
		Cursors:   NewCursors(),
	}
}
