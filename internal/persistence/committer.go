package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"MemeLedger/internal/state"
	"MemeLedger/internal/store"
)

// Committer writes one event's changeset in a single transaction: the
// entity upserts and the processed_events row commit together.
type Committer struct {
	db *sql.DB

	tokens    *Store[state.Token, *state.Token]
	trades    *Store[state.Trade, *state.Trade]
	positions *Store[state.Position, *state.Position]
	holders   *Store[state.TokenHolder, *state.TokenHolder]
	users     *Store[state.User, *state.User]
}

func (c *Committer) Commit(ctx context.Context, cs *state.Changeset) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	if err = saveTx(ctx, tx, c.tokens, cs.Tokens); err != nil {
		return err
	}
	if err = saveTx(ctx, tx, c.trades, cs.Trades); err != nil {
		return err
	}
	if err = saveTx(ctx, tx, c.positions, cs.Positions); err != nil {
		return err
	}
	if err = saveTx(ctx, tx, c.holders, cs.Holders); err != nil {
		return err
	}
	if err = saveTx(ctx, tx, c.users, cs.Users); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, markProcessedSQL, cs.EventType, cs.Key); err != nil {
		return fmt.Errorf("postgres: mark processed: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit %s %s: %w", cs.EventType, cs.Key, err)
	}
	return nil
}

func saveTx[T any, P store.Record[T]](ctx context.Context, tx *sql.Tx, s *Store[T, P], recs []*T) error {
	for _, rec := range recs {
		if err := s.save(ctx, tx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Cursors implements state.CursorStore on the chain_cursors table.
type Cursors struct {
	db *sql.DB
}

func NewCursors(db *sql.DB) *Cursors {
	return &Cursors{db: db}
}

func (c *Cursors) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	var block int64
	err := c.db.QueryRowContext(ctx,
		`SELECT block_number FROM chain_cursors WHERE name = $1`, name).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres: load cursor %s: %w", name, err)
	}
	return uint64(block), true, nil
}

func (c *Cursors) SaveCursor(ctx context.Context, name string, block uint64) error {
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO chain_cursors (name, block_number, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (name) DO UPDATE SET block_number = EXCLUDED.block_number, updated_at = NOW()
    `, name, int64(block))
	if err != nil {
		return fmt.Errorf("postgres: save cursor %s: %w", name, err)
	}
	return nil
}
