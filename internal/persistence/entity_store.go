package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"
	"MemeLedger/internal/state"
	"MemeLedger/internal/store"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
)

// Open connects to Postgres and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// table maps one entity kind onto a typed table. The first column is the
// primary key and must hold EntityID().
type table[T any] struct {
	name    string
	columns []string
	values  func(rec *T) ([]interface{}, error)
	scan    func(row rowScanner) (*T, error)
}

// Store implements state.EntityStore over one table. Save is an upsert.
type Store[T any, P store.Record[T]] struct {
	db   *sql.DB
	kind string
	t    table[T]

	selectSQL string
	listSQL   string
	upsertSQL string
}

func newStore[T any, P store.Record[T]](db *sql.DB, kind string, t table[T]) *Store[T, P] {
	return &Store[T, P]{
		db:        db,
		kind:      kind,
		t:         t,
		selectSQL: selectSQL(t.name, t.columns),
		listSQL:   listSQL(t.name, t.columns),
		upsertSQL: upsertSQL(t.name, t.columns),
	}
}

var _ state.EntityStore[state.Position] = (*Store[state.Position, *state.Position])(nil)

func (s *Store[T, P]) Load(ctx context.Context, id string) (*T, bool, error) {
	rec, err := s.t.scan(s.db.QueryRowContext(ctx, s.selectSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: load %s %s: %w", s.kind, id, err)
	}
	return rec, true, nil
}

func (s *Store[T, P]) Save(ctx context.Context, rec *T) error {
	return s.save(ctx, s.db, rec)
}

// List returns every row ordered by id.
func (s *Store[T, P]) List(ctx context.Context) ([]*T, error) {
	rows, err := s.db.QueryContext(ctx, s.listSQL)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", s.kind, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		rec, err := s.t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", s.kind, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", s.kind, err)
	}
	return out, nil
}

func (s *Store[T, P]) save(ctx context.Context, db execer, rec *T) error {
	if rec == nil {
		return store.ErrInvalidInput
	}
	id := P(rec).EntityID()
	if id == "" {
		return store.ErrInvalidInput
	}

	args, err := s.t.values(rec)
	if err != nil {
		return fmt.Errorf("postgres: encode %s %s: %w", s.kind, id, err)
	}
	if _, err := db.ExecContext(ctx, s.upsertSQL, args...); err != nil {
		return fmt.Errorf("postgres: save %s %s: %w", s.kind, id, err)
	}
	return nil
}

func selectSQL(name string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(columns, ", "), name, columns[0])
}

func listSQL(name string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(columns, ", "), name, columns[0])
}

// upsertSQL builds INSERT ... ON CONFLICT (id) DO UPDATE over every non-key column.
func upsertSQL(name string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		name,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		columns[0],
		strings.Join(sets, ", "),
	)
}

var tokensTable = table[state.Token]{
	name: "tokens",
	columns: []string{
		"id", "creator", "bonding_curve", "pair", "name", "symbol", "decimals",
		"bonded", "created_at", "updated_at", "bonded_at", "latest_price_eth",
	},
	values: func(t *state.Token) ([]interface{}, error) {
		var pair, price sql.NullString
		var bondedAt sql.NullTime
		if t.Pair != nil {
			pair = sql.NullString{String: event.AddressID(*t.Pair), Valid: true}
		}
		if t.BondedAt != nil {
			bondedAt = sql.NullTime{Time: t.BondedAt.UTC(), Valid: true}
		}
		if t.LatestPriceEth != nil {
			price = sql.NullString{String: t.LatestPriceEth.FixedString(), Valid: true}
		}
		return []interface{}{
			t.EntityID(), event.AddressID(t.Creator), event.AddressID(t.BondingCurve), pair,
			t.Name, t.Symbol, int16(t.Decimals), t.Bonded,
			t.CreatedAt.UTC(), t.UpdatedAt.UTC(), bondedAt, price,
		}, nil
	},
	scan: func(row rowScanner) (*state.Token, error) {
		var (
			t                  state.Token
			id, creator, curve string
			pair, price        sql.NullString
			decimals           int16
			bondedAt           sql.NullTime
		)
		if err := row.Scan(&id, &creator, &curve, &pair, &t.Name, &t.Symbol, &decimals,
			&t.Bonded, &t.CreatedAt, &t.UpdatedAt, &bondedAt, &price); err != nil {
			return nil, err
		}
		t.ID = common.HexToAddress(id)
		t.Creator = common.HexToAddress(creator)
		t.BondingCurve = common.HexToAddress(curve)
		t.Decimals = uint8(decimals)
		t.CreatedAt = t.CreatedAt.UTC()
		t.UpdatedAt = t.UpdatedAt.UTC()
		if pair.Valid {
			p := common.HexToAddress(pair.String)
			t.Pair = &p
		}
		if bondedAt.Valid {
			b := bondedAt.Time.UTC()
			t.BondedAt = &b
		}
		if price.Valid {
			d, err := fpmath.NewFromString(price.String)
			if err != nil {
				return nil, fmt.Errorf("latest_price_eth: %w", err)
			}
			t.LatestPriceEth = &d
		}
		return &t, nil
	},
}

var tradesTable = table[state.Trade]{
	name: "trades",
	columns: []string{
		"id", "tx_hash", "log_index", "block_number", "block_time",
		"user_address", "token", "side", "venue", "eth_qty", "token_qty",
	},
	values: func(t *state.Trade) ([]interface{}, error) {
		return []interface{}{
			t.ID, t.TxHash.Hex(), int64(t.LogIndex), int64(t.BlockNumber), t.Timestamp.UTC(),
			event.AddressID(t.User), event.AddressID(t.Token), t.Side.String(), t.Venue.String(),
			t.EthQty, t.TokenQty,
		}, nil
	},
	scan: func(row rowScanner) (*state.Trade, error) {
		var (
			t                     state.Trade
			txHash, user, token   string
			side, venue           string
			logIndex, blockNumber int64
		)
		if err := row.Scan(&t.ID, &txHash, &logIndex, &blockNumber, &t.Timestamp,
			&user, &token, &side, &venue, &t.EthQty, &t.TokenQty); err != nil {
			return nil, err
		}
		var err error
		if t.Side, err = event.ParseSide(side); err != nil {
			return nil, err
		}
		if t.Venue, err = event.ParseVenue(venue); err != nil {
			return nil, err
		}
		t.TxHash = common.HexToHash(txHash)
		t.LogIndex = uint(logIndex)
		t.BlockNumber = uint64(blockNumber)
		t.Timestamp = t.Timestamp.UTC()
		t.User = common.HexToAddress(user)
		t.Token = common.HexToAddress(token)
		return &t, nil
	},
}

var positionsTable = table[state.Position]{
	name: "positions",
	columns: []string{
		"id", "user_address", "token", "balance", "avg_cost_eth_per_token",
		"total_eth_bought", "total_tokens_bought", "total_eth_sold", "total_tokens_sold",
		"realized_pnl_eth", "updated_at",
	},
	values: func(p *state.Position) ([]interface{}, error) {
		balance := p.Balance
		if balance == nil {
			balance = new(big.Int)
		}
		if err := fpmath.ValidateRaw(balance); err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		return []interface{}{
			p.ID, event.AddressID(p.User), event.AddressID(p.Token), balance.String(),
			p.AvgCostEthPerToken, p.TotalEthBought, p.TotalTokensBought,
			p.TotalEthSold, p.TotalTokensSold, p.RealizedPnLEth, p.UpdatedAt.UTC(),
		}, nil
	},
	scan: func(row rowScanner) (*state.Position, error) {
		var (
			p                    state.Position
			user, token, balance string
		)
		if err := row.Scan(&p.ID, &user, &token, &balance, &p.AvgCostEthPerToken,
			&p.TotalEthBought, &p.TotalTokensBought, &p.TotalEthSold, &p.TotalTokensSold,
			&p.RealizedPnLEth, &p.UpdatedAt); err != nil {
			return nil, err
		}
		raw, ok := new(big.Int).SetString(balance, 10)
		if !ok {
			return nil, fmt.Errorf("balance: malformed %q", balance)
		}
		p.Balance = raw
		p.User = common.HexToAddress(user)
		p.Token = common.HexToAddress(token)
		p.UpdatedAt = p.UpdatedAt.UTC()
		return &p, nil
	},
}

var holdersTable = table[state.TokenHolder]{
	name:    "token_holders",
	columns: []string{"id", "token", "holder", "balance", "updated_at"},
	values: func(h *state.TokenHolder) ([]interface{}, error) {
		return []interface{}{
			h.ID, event.AddressID(h.Token), event.AddressID(h.Holder), h.Balance, h.UpdatedAt.UTC(),
		}, nil
	},
	scan: func(row rowScanner) (*state.TokenHolder, error) {
		var (
			h             state.TokenHolder
			token, holder string
		)
		if err := row.Scan(&h.ID, &token, &holder, &h.Balance, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.Token = common.HexToAddress(token)
		h.Holder = common.HexToAddress(holder)
		h.UpdatedAt = h.UpdatedAt.UTC()
		return &h, nil
	},
}

var usersTable = table[state.User]{
	name:    "users",
	columns: []string{"id", "first_seen_at", "updated_at"},
	values: func(u *state.User) ([]interface{}, error) {
		return []interface{}{u.EntityID(), u.FirstSeenAt.UTC(), u.UpdatedAt.UTC()}, nil
	},
	scan: func(row rowScanner) (*state.User, error) {
		var (
			u                  state.User
			id                 string
			firstSeen, updated time.Time
		)
		if err := row.Scan(&id, &firstSeen, &updated); err != nil {
			return nil, err
		}
		u.ID = common.HexToAddress(id)
		u.FirstSeenAt = firstSeen.UTC()
		u.UpdatedAt = updated.UTC()
		return &u, nil
	},
}

// NewStores wires a complete Postgres backend. The schema comes from migrations/.
func NewStores(db *sql.DB) state.Stores {
	c := &Committer{
		db:        db,
		tokens:    newStore[state.Token, *state.Token](db, state.KindToken, tokensTable),
		trades:    newStore[state.Trade, *state.Trade](db, state.KindTrade, tradesTable),
		positions: newStore[state.Position, *state.Position](db, state.KindPosition, positionsTable),
		holders:   newStore[state.TokenHolder, *state.TokenHolder](db, state.KindTokenHolder, holdersTable),
		users:     newStore[state.User, *state.User](db, state.KindUser, usersTable),
	}
	return state.Stores{
		Tokens:    c.tokens,
		Trades:    c.trades,
		Positions: c.positions,
		Holders:   c.holders,
		Users:     c.users,
		Processed: NewProcessedEvents(db),
		Committer: c,
		Cursors:   NewCursors(db),
	}
}
