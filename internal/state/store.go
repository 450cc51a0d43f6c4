package state

import "context"

// Entity kinds, used as store namespaces and in errors.
const (
	KindToken       = "Token"
	KindTrade       = "Trade"
	KindPosition    = "Position"
	KindTokenHolder = "TokenHolder"
	KindUser        = "User"
)

// EntityStore is a key-value store for one entity kind. Load reports a miss
// with ok=false and a nil error. Save overwrites unconditionally.
type EntityStore[T any] interface {
	Load(ctx context.Context, id string) (rec *T, ok bool, err error)
	Save(ctx context.Context, rec *T) error
}

// Lister is implemented by stores that can enumerate every record.
type Lister[T any] interface {
	List(ctx context.Context) ([]*T, error)
}

// ProcessedStore remembers idempotency keys of fully applied events.
type ProcessedStore interface {
	IsProcessed(ctx context.Context, eventType, key string) (bool, error)
	MarkProcessed(ctx context.Context, eventType, key string) error
}

// Changeset is every record one event wrote, plus the key that marks the
// event processed.
type Changeset struct {
	Tokens    []*Token
	Trades    []*Trade
	Positions []*Position
	Holders   []*TokenHolder
	Users     []*User

	EventType string
	Key       string
}

// Records returns the number of entity records in the changeset.
func (cs *Changeset) Records() int {
	return len(cs.Tokens) + len(cs.Trades) + len(cs.Positions) + len(cs.Holders) + len(cs.Users)
}

// Committer writes a changeset atomically: every record and the processed
// key are stored, or none are.
type Committer interface {
	Commit(ctx context.Context, cs *Changeset) error
}

// CursorStore persists named block cursors.
type CursorStore interface {
	LoadCursor(ctx context.Context, name string) (block uint64, ok bool, err error)
	SaveCursor(ctx context.Context, name string, block uint64) error
}

// Stores bundles every store a backend provides. Committer may be nil, in
// which case changesets are saved record by record.
type Stores struct {
	Tokens    EntityStore[Token]
	Trades    EntityStore[Trade]
	Positions EntityStore[Position]
	Holders   EntityStore[TokenHolder]
	Users     EntityStore[User]
	Processed ProcessedStore
	Committer Committer
	Cursors   CursorStore
}

func loadEntity[T any](ctx context.Context, s EntityStore[T], kind, id string) (*T, bool, error) {
	rec, ok, err := s.Load(ctx, id)
	if err != nil {
		return nil, false, &StoreError{Op: "load", Kind: kind, ID: id, Err: err}
	}
	return rec, ok, nil
}

func saveEntity[T any](ctx context.Context, s EntityStore[T], kind, id string, rec *T) error {
	if err := s.Save(ctx, rec); err != nil {
		return &StoreError{Op: "save", Kind: kind, ID: id, Err: err}
	}
	return nil
}
