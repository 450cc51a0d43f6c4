package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ProcessedEvents implements state.ProcessedStore on the processed_events table.
type ProcessedEvents struct {
	db *sql.DB
}

func NewProcessedEvents(db *sql.DB) *ProcessedEvents {
	return &ProcessedEvents{db: db}
}

func (p *ProcessedEvents) IsProcessed(ctx context.Context, eventType, key string) (bool, error) {
	query := `
        SELECT 1
        FROM processed_events
        WHERE event_type = $1 AND idempotency_key = $2
        LIMIT 1
    `

	var exists int
	err := p.db.QueryRowContext(ctx, query, eventType, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("postgres: processed lookup: %w", err)
	}
	return true, nil
}

const markProcessedSQL = `
        INSERT INTO processed_events (event_type, idempotency_key)
        VALUES ($1, $2)
        ON CONFLICT (event_type, idempotency_key) DO NOTHING
    `

// MarkProcessed is a no-op for keys already present.
func (p *ProcessedEvents) MarkProcessed(ctx context.Context, eventType, key string) error {
	if _, err := p.db.ExecContext(ctx, markProcessedSQL, eventType, key); err != nil {
		return fmt.Errorf("postgres: mark processed: %w", err)
	}
	return nil
}
