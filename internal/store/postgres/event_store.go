package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// EventStore implements domain.EventStore over the market_events and trades
// logs written by LedgerStore.Apply.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const tradeSelectCols = `seq, question_id, answer_id, trader, side,
	gross, platform_fee, creator_fee, king_fee, net,
	shares, pool_after, shares_after, at`

func scanEventRows(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev domain.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var trader []byte
		var side string
		if err := rows.Scan(
			&t.Seq, &t.QuestionID, &t.AnswerID, &trader, &side,
			&t.Split.Gross, &t.Split.Platform, &t.Split.Creator, &t.Split.King, &t.Split.Net,
			&t.Shares, &t.PoolAfter, &t.SharesAfter, &t.At,
		); err != nil {
			return nil, err
		}
		t.Trader = common.BytesToAddress(trader)
		t.Side = domain.TradeSide(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ListEvents returns events newest first.
func (s *EventStore) ListEvents(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	query, args := listQuery(`SELECT payload FROM market_events WHERE TRUE`, nil, "at", "seq DESC", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events: %w", err)
	}
	return events, nil
}

// ListTrades returns the trades of one answer newest first.
func (s *EventStore) ListTrades(ctx context.Context, answerID uint64, opts domain.ListOpts) ([]domain.Trade, error) {
	query, args := listQuery(`SELECT `+tradeSelectCols+` FROM trades WHERE answer_id = $1`,
		[]any{answerID}, "at", "seq DESC", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for answer %d: %w", answerID, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades for answer %d: %w", answerID, err)
	}
	return trades, nil
}

// ListEventsBefore returns all events strictly before the given time, oldest
// first, for archiving.
func (s *EventStore) ListEventsBefore(ctx context.Context, before time.Time) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM market_events WHERE at < $1 ORDER BY seq ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before: %w", err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// DeleteEventsBefore prunes events and trades strictly before the given
// time. Returns the number of events deleted.
func (s *EventStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	var deleted int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM market_events WHERE at < $1`, before)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		_, err = tx.Exec(ctx, `DELETE FROM trades WHERE at < $1`, before)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before: %w", err)
	}
	return deleted, nil
}
