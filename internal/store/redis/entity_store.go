package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"MemeLedger/internal/state"
	"MemeLedger/internal/store"

	"github.com/redis/go-redis/v9"
)

// Store implements state.EntityStore with one JSON string per record.
//
// Key schema:
//
//	{prefix}:{kind}:{id} - JSON-serialized entity
type Store[T any, P store.Record[T]] struct {
	c    *Client
	kind string
}

// NewStore creates a store for one entity kind, e.g. NewStore[state.Token](c, state.KindToken).
func NewStore[T any, P store.Record[T]](c *Client, kind string) *Store[T, P] {
	return &Store[T, P]{c: c, kind: kind}
}

var _ state.EntityStore[state.Token] = (*Store[state.Token, *state.Token])(nil)

func (s *Store[T, P]) Load(ctx context.Context, id string) (*T, bool, error) {
	data, err := s.c.rdb.Get(ctx, s.c.key(s.kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get %s %s: %w", s.kind, id, err)
	}

	rec := new(T)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, false, fmt.Errorf("redis: unmarshal %s %s: %w", s.kind, id, err)
	}
	return rec, true, nil
}

func (s *Store[T, P]) Save(ctx context.Context, rec *T) error {
	if rec == nil {
		return store.ErrInvalidInput
	}
	id := P(rec).EntityID()
	if id == "" {
		return store.ErrInvalidInput
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis: marshal %s %s: %w", s.kind, id, err)
	}
	if err := s.c.rdb.Set(ctx, s.c.key(s.kind, id), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s %s: %w", s.kind, id, err)
	}
	return nil
}

// List returns every record of the store's kind ordered by id. It walks
// the keyspace with SCAN, so records saved meanwhile may or may not appear.
func (s *Store[T, P]) List(ctx context.Context) ([]*T, error) {
	var keys []string
	iter := s.c.rdb.Scan(ctx, 0, s.c.key(s.kind, "*"), 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", s.kind, err)
	}
	sort.Strings(keys)

	out := make([]*T, 0, len(keys))
	for _, k := range keys {
		data, err := s.c.rdb.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: get %s: %w", k, err)
		}
		rec := new(T)
		if err := json.Unmarshal(data, rec); err != nil {
			return nil, fmt.Errorf("redis: unmarshal %s: %w", k, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ProcessedSet implements state.ProcessedStore as a Redis set.
//
// Key schema:
//
//	{prefix}:processed - set of "{eventType}:{key}"
type ProcessedSet struct {
	c *Client
}

func NewProcessedSet(c *Client) *ProcessedSet {
	return &ProcessedSet{c: c}
}

func (p *ProcessedSet) IsProcessed(ctx context.Context, eventType, key string) (bool, error) {
	ok, err := p.c.rdb.SIsMember(ctx, p.c.key("processed"), eventType+":"+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: processed lookup: %w", err)
	}
	return ok, nil
}

func (p *ProcessedSet) MarkProcessed(ctx context.Context, eventType, key string) error {
	if err := p.c.rdb.SAdd(ctx, p.c.key("processed"), eventType+":"+key).Err(); err != nil {
		return fmt.Errorf("redis: mark processed: %w", err)
	}
	return nil
}

// Cursors implements state.CursorStore.
//
// Key schema:
//
//	{prefix}:cursor:{name} - decimal block number
type Cursors struct {
	c *Client
}

func NewCursors(c *Client) *Cursors {
	return &Cursors{c: c}
}

func (cs *Cursors) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	v, err := cs.c.rdb.Get(ctx, cs.c.key("cursor", name)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis: get cursor %s: %w", name, err)
	}
	block, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: cursor %s: %w", name, err)
	}
	return block, true, nil
}

func (cs *Cursors) SaveCursor(ctx context.Context, name string, block uint64) error {
	if err := cs.c.rdb.Set(ctx, cs.c.key("cursor", name), strconv.FormatUint(block, 10), 0).Err(); err != nil {
		return fmt.Errorf("redis: set cursor %s: %w", name, err)
	}
	return nil
}

// Committer writes a changeset in one MULTI/EXEC transaction.
type Committer struct {
	c *Client
}

func NewCommitter(c *Client) *Committer {
	return &Committer{c: c}
}

func (cm *Committer) Commit(ctx context.Context, cs *state.Changeset) error {
	type entry struct {
		key  string
		data []byte
	}
	entries := make([]entry, 0, cs.Records())
	add := func(kind, id string, rec interface{}) error {
		if id == "" {
			return store.ErrInvalidInput
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("redis: marshal %s %s: %w", kind, id, err)
		}
		entries = append(entries, entry{key: cm.c.key(kind, id), data: data})
		return nil
	}
	for _, r := range cs.Tokens {
		if err := add(state.KindToken, r.EntityID(), r); err != nil {
			return err
		}
	}
	for _, r := range cs.Trades {
		if err := add(state.KindTrade, r.EntityID(), r); err != nil {
			return err
		}
	}
	for _, r := range cs.Positions {
		if err := add(state.KindPosition, r.EntityID(), r); err != nil {
			return err
		}
	}
	for _, r := range cs.Holders {
		if err := add(state.KindTokenHolder, r.EntityID(), r); err != nil {
			return err
		}
	}
	for _, r := range cs.Users {
		if err := add(state.KindUser, r.EntityID(), r); err != nil {
			return err
		}
	}

	_, err := cm.c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.key, e.data, 0)
		}
		pipe.SAdd(ctx, cm.c.key("processed"), cs.EventType+":"+cs.Key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: commit %s %s: %w", cs.EventType, cs.Key, err)
	}
	return nil
}

// NewStores wires a complete Redis backend.
func NewStores(c *Client) state.Stores {
	return state.Stores{
		Tokens:    NewStore[state.Token](c, state.KindToken),
		Trades:    NewStore[state.Trade](c, state.KindTrade),
		Positions: NewStore[state.Position](c, state.KindPosition),
		Holders:   NewStore[state.TokenHolder](c, state.KindTokenHolder),
		Users:     NewStore[state.User](c, state.KindUser),
		Processed: NewProcessedSet(c),
		Committer: NewCommitter(c),
		Cursors:   NewCursors(c),
	}
}
