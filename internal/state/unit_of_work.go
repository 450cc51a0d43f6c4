package state

import (
	"context"
	"errors"
)

var errInvalidRecord = errors.New("nil record or empty id")

type record[T any] interface {
	*T
	EntityID() string
	Clone() *T
}

// bufferedStore holds one event's writes in front of a backend store.
// Loads see buffered writes first.
type bufferedStore[T any, P record[T]] struct {
	base    EntityStore[T]
	pending map[string]*T
	order   []string
}

func newBufferedStore[T any, P record[T]](base EntityStore[T]) *bufferedStore[T, P] {
	return &bufferedStore[T, P]{base: base, pending: make(map[string]*T)}
}

func (b *bufferedStore[T, P]) Load(ctx context.Context, id string) (*T, bool, error) {
	if rec, ok := b.pending[id]; ok {
		return P(rec).Clone(), true, nil
	}
	return b.base.Load(ctx, id)
}

func (b *bufferedStore[T, P]) Save(_ context.Context, rec *T) error {
	if rec == nil || P(rec).EntityID() == "" {
		return errInvalidRecord
	}
	id := P(rec).EntityID()
	if _, seen := b.pending[id]; !seen {
		b.order = append(b.order, id)
	}
	b.pending[id] = P(rec).Clone()
	return nil
}

// drain returns the buffered records in first-write order and empties the buffer.
func (b *bufferedStore[T, P]) drain() []*T {
	out := make([]*T, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.pending[id])
	}
	b.reset()
	return out
}

func (b *bufferedStore[T, P]) reset() {
	clear(b.pending)
	b.order = b.order[:0]
}

// UnitOfWork collects the writes of one event and hands them to the
// backend's Committer in a single call. It is not safe for concurrent use.
type UnitOfWork struct {
	tokens    *bufferedStore[Token, *Token]
	trades    *bufferedStore[Trade, *Trade]
	positions *bufferedStore[Position, *Position]
	holders   *bufferedStore[TokenHolder, *TokenHolder]
	users     *bufferedStore[User, *User]

	processed ProcessedStore
	committer Committer
}

func NewUnitOfWork(base Stores) *UnitOfWork {
	committer := base.Committer
	if committer == nil {
		committer = sequentialCommitter{stores: base}
	}
	return &UnitOfWork{
		tokens:    newBufferedStore[Token, *Token](base.Tokens),
		trades:    newBufferedStore[Trade, *Trade](base.Trades),
		positions: newBufferedStore[Position, *Position](base.Positions),
		holders:   newBufferedStore[TokenHolder, *TokenHolder](base.Holders),
		users:     newBufferedStore[User, *User](base.Users),
		processed: base.Processed,
		committer: committer,
	}
}

// Stores returns the buffered view handlers read and write through.
func (u *UnitOfWork) Stores() Stores {
	return Stores{
		Tokens:    u.tokens,
		Trades:    u.trades,
		Positions: u.positions,
		Holders:   u.holders,
		Users:     u.users,
		Processed: u.processed,
	}
}

// Reset discards buffered writes.
func (u *UnitOfWork) Reset() {
	u.tokens.reset()
	u.trades.reset()
	u.positions.reset()
	u.holders.reset()
	u.users.reset()
}

// Commit writes the buffered records and marks (eventType, key) processed.
// The buffer is empty afterwards whether or not the commit succeeded.
func (u *UnitOfWork) Commit(ctx context.Context, eventType, key string) error {
	cs := &Changeset{
		Tokens:    u.tokens.drain(),
		Trades:    u.trades.drain(),
		Positions: u.positions.drain(),
		Holders:   u.holders.drain(),
		Users:     u.users.drain(),
		EventType: eventType,
		Key:       key,
	}
	if err := u.committer.Commit(ctx, cs); err != nil {
		return &StoreError{Op: "commit", Kind: eventType, ID: key, Err: err}
	}
	return nil
}

// sequentialCommitter serves backends without a Committer. Overwrites
// that are safe to repeat go first and balance records last, then the
// processed key. A failure among the balance writes can still leave part of
// an event applied.
type sequentialCommitter struct {
	stores Stores
}

func (c sequentialCommitter) Commit(ctx context.Context, cs *Changeset) error {
	if err := saveAll(ctx, c.stores.Tokens, cs.Tokens); err != nil {
		return err
	}
	if err := saveAll(ctx, c.stores.Trades, cs.Trades); err != nil {
		return err
	}
	if err := saveAll(ctx, c.stores.Users, cs.Users); err != nil {
		return err
	}
	if err := saveAll(ctx, c.stores.Positions, cs.Positions); err != nil {
		return err
	}
	if err := saveAll(ctx, c.stores.Holders, cs.Holders); err != nil {
		return err
	}
	if c.stores.Processed == nil {
		return nil
	}
	return c.stores.Processed.MarkProcessed(ctx, cs.EventType, cs.Key)
}

func saveAll[T any](ctx context.Context, s EntityStore[T], recs []*T) error {
	for _, rec := range recs {
		if err := s.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
