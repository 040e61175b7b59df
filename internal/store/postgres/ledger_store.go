package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/answermarket/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. Every
// committed market operation is written through as one transaction.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

const (
	upsertQuestion = `
		INSERT INTO questions (
			id, text, category, creator, created_at,
			total_volume, answer_count, leading_answer_id, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			creator           = EXCLUDED.creator,
			total_volume      = EXCLUDED.total_volume,
			answer_count      = EXCLUDED.answer_count,
			leading_answer_id = EXCLUDED.leading_answer_id,
			active            = EXCLUDED.active`

	upsertAnswer = `
		INSERT INTO answers (
			id, question_id, text, description, external_link, proposer,
			pool_value, total_shares, graduated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			pool_value   = EXCLUDED.pool_value,
			total_shares = EXCLUDED.total_shares,
			graduated    = EXCLUDED.graduated`

	upsertPosition = `
		INSERT INTO positions (answer_id, holder, shares, cost_basis, pending_king_fees)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (answer_id, holder) DO UPDATE SET
			shares            = EXCLUDED.shares,
			cost_basis        = EXCLUDED.cost_basis,
			pending_king_fees = EXCLUDED.pending_king_fees`

	upsertBalance = `
		INSERT INTO balances (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`

	upsertAccumulated = `
		INSERT INTO accumulated_fees (account, amount) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`

	upsertTick = `
		INSERT INTO actor_ticks (actor, tick) VALUES ($1, $2)
		ON CONFLICT (actor) DO UPDATE SET tick = EXCLUDED.tick`

	insertRole = `INSERT INTO role_members (role, account) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	deleteRole = `DELETE FROM role_members WHERE role = $1 AND account = $2`

	insertEvent = `
		INSERT INTO market_events (id, seq, type, question_id, answer_id, actor, payload, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	insertTrade = `
		INSERT INTO trades (
			seq, question_id, answer_id, trader, side,
			gross, platform_fee, creator_fee, king_fee, net,
			shares, pool_after, shares_after, at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	upsertMeta = `
		INSERT INTO ledger_meta (id, seq, next_question_id, next_answer_id, params, paused, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			seq              = EXCLUDED.seq,
			next_question_id = EXCLUDED.next_question_id,
			next_answer_id   = EXCLUDED.next_answer_id,
			params           = EXCLUDED.params,
			paused           = EXCLUDED.paused,
			updated_at       = NOW()`
)

// Apply writes one committed change set in a single transaction. Change sets
// must be applied in sequence order; an out-of-order set is rejected.
func (s *LedgerStore) Apply(ctx context.Context, cs domain.ChangeSet) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var seq uint64
		if err := tx.QueryRow(ctx, `SELECT seq FROM ledger_meta WHERE id = 1 FOR UPDATE`).Scan(&seq); err != nil {
			return fmt.Errorf("postgres: apply seq %d: read meta: %w", cs.Seq, err)
		}
		if cs.Seq != seq+1 {
			return fmt.Errorf("postgres: apply seq %d after %d: out of order", cs.Seq, seq)
		}

		batch := &pgx.Batch{}
		batch.Queue(`UPDATE ledger_meta SET seq = $1, updated_at = NOW() WHERE id = 1`, cs.Seq)
		if cs.NextQuestionID > 0 {
			batch.Queue(`UPDATE ledger_meta SET next_question_id = $1, next_answer_id = $2 WHERE id = 1`,
				cs.NextQuestionID, cs.NextAnswerID)
		}
		if cs.Params != nil {
			params, err := json.Marshal(cs.Params)
			if err != nil {
				return fmt.Errorf("postgres: marshal params: %w", err)
			}
			batch.Queue(`UPDATE ledger_meta SET params = $1 WHERE id = 1`, params)
		}
		if cs.Paused != nil {
			batch.Queue(`UPDATE ledger_meta SET paused = $1 WHERE id = 1`, *cs.Paused)
		}
		queueRows(batch, cs.Questions, cs.Answers, cs.Positions, cs.Balances, cs.AccumulatedFees, cs.Ticks)
		for _, g := range cs.RolesGranted {
			batch.Queue(insertRole, string(g.Role), g.Account.Bytes())
		}
		for _, g := range cs.RolesRevoked {
			batch.Queue(deleteRole, string(g.Role), g.Account.Bytes())
		}
		for _, ev := range cs.Events {
			id, err := uuid.Parse(ev.ID)
			if err != nil {
				return fmt.Errorf("postgres: event id %q: %w", ev.ID, err)
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("postgres: marshal event %s: %w", ev.Type, err)
			}
			batch.Queue(insertEvent, id, ev.Seq, string(ev.Type), ev.QuestionID, ev.AnswerID, ev.Actor.Bytes(), payload, ev.At)
		}
		for _, t := range cs.Trades {
			batch.Queue(insertTrade,
				t.Seq, t.QuestionID, t.AnswerID, t.Trader.Bytes(), string(t.Side),
				int64(t.Split.Gross), int64(t.Split.Platform), int64(t.Split.Creator), int64(t.Split.King), int64(t.Split.Net),
				int64(t.Shares), int64(t.PoolAfter), int64(t.SharesAfter), t.At,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: apply seq %d: %w", cs.Seq, err)
		}
		return nil
	})
}

// Replace discards the ledger tables and writes snap. The event, trade and
// audit logs are kept.
func (s *LedgerStore) Replace(ctx context.Context, snap domain.Snapshot) error {
	params, err := json.Marshal(snap.Params)
	if err != nil {
		return fmt.Errorf("postgres: marshal params: %w", err)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const truncate = `TRUNCATE positions, answers, questions, balances,
			accumulated_fees, role_members, actor_ticks, ledger_meta`
		if _, err := tx.Exec(ctx, truncate); err != nil {
			return fmt.Errorf("postgres: replace: truncate: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(upsertMeta, snap.Seq, snap.NextQuestionID, snap.NextAnswerID, params, snap.Paused)
		queueRows(batch, snap.Questions, snap.Answers, snap.Positions, snap.Balances, snap.AccumulatedFees, snap.Ticks)
		for _, g := range snap.Roles {
			batch.Queue(insertRole, string(g.Role), g.Account.Bytes())
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: replace seq %d: %w", snap.Seq, err)
		}
		return nil
	})
}

// queueRows queues upserts in dependency order: questions before answers
// before positions.
func queueRows(batch *pgx.Batch, qs []domain.Question, as []domain.Answer, ps []domain.Position,
	bal, acc []domain.AccountAmount, ticks []domain.ActorTick) {
	for _, q := range qs {
		batch.Queue(upsertQuestion,
			q.ID, q.Text, q.Category, q.Creator.Bytes(), q.CreatedAt,
			int64(q.TotalVolume), q.AnswerCount, q.LeadingAnswerID, q.Active,
		)
	}
	for _, a := range as {
		batch.Queue(upsertAnswer,
			a.ID, a.QuestionID, a.Text, a.Description, a.ExternalLink, a.Proposer.Bytes(),
			int64(a.PoolValue), int64(a.TotalShares), a.Graduated, a.CreatedAt,
		)
	}
	for _, p := range ps {
		batch.Queue(upsertPosition, p.AnswerID, p.Holder.Bytes(), int64(p.Shares), int64(p.CostBasis), int64(p.PendingKingFees))
	}
	for _, b := range bal {
		batch.Queue(upsertBalance, b.Account.Bytes(), int64(b.Amount))
	}
	for _, b := range acc {
		batch.Queue(upsertAccumulated, b.Account.Bytes(), int64(b.Amount))
	}
	for _, t := range ticks {
		batch.Queue(upsertTick, t.Actor.Bytes(), t.Tick)
	}
}

// Load reads the full ledger. ok is false when no ledger was ever written.
func (s *LedgerStore) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	var params []byte
	err := s.pool.QueryRow(ctx,
		`SELECT seq, next_question_id, next_answer_id, params, paused, updated_at FROM ledger_meta WHERE id = 1`,
	).Scan(&snap.Seq, &snap.NextQuestionID, &snap.NextAnswerID, &params, &snap.Paused, &snap.TakenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("postgres: load meta: %w", err)
	}
	if err := json.Unmarshal(params, &snap.Params); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("postgres: unmarshal params: %w", err)
	}

	loaders := []struct {
		name  string
		query string
		scan  func(pgx.Rows) error
	}{
		{"questions", `SELECT id, text, category, creator, created_at, total_volume, answer_count, leading_answer_id, active FROM questions ORDER BY id`,
			func(rows pgx.Rows) error {
				var q domain.Question
				var creator []byte
				if err := rows.Scan(&q.ID, &q.Text, &q.Category, &creator, &q.CreatedAt, &q.TotalVolume, &q.AnswerCount, &q.LeadingAnswerID, &q.Active); err != nil {
					return err
				}
				q.Creator = common.BytesToAddress(creator)
				snap.Questions = append(snap.Questions, q)
				return nil
			}},
		{"answers", `SELECT id, question_id, text, description, external_link, proposer, pool_value, total_shares, graduated, created_at FROM answers ORDER BY id`,
			func(rows pgx.Rows) error {
				var a domain.Answer
				var proposer []byte
				if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.Description, &a.ExternalLink, &proposer, &a.PoolValue, &a.TotalShares, &a.Graduated, &a.CreatedAt); err != nil {
					return err
				}
				a.Proposer = common.BytesToAddress(proposer)
				snap.Answers = append(snap.Answers, a)
				return nil
			}},
		{"positions", `SELECT answer_id, holder, shares, cost_basis, pending_king_fees FROM positions ORDER BY answer_id, holder`,
			func(rows pgx.Rows) error {
				var p domain.Position
				var holder []byte
				if err := rows.Scan(&p.AnswerID, &holder, &p.Shares, &p.CostBasis, &p.PendingKingFees); err != nil {
					return err
				}
				p.Holder = common.BytesToAddress(holder)
				snap.Positions = append(snap.Positions, p)
				return nil
			}},
		{"balances", `SELECT account, amount FROM balances ORDER BY account`,
			scanAccountAmount(&snap.Balances)},
		{"accumulated_fees", `SELECT account, amount FROM accumulated_fees ORDER BY account`,
			scanAccountAmount(&snap.AccumulatedFees)},
		{"role_members", `SELECT role, account FROM role_members ORDER BY role, account`,
			func(rows pgx.Rows) error {
				var role string
				var account []byte
				if err := rows.Scan(&role, &account); err != nil {
					return err
				}
				snap.Roles = append(snap.Roles, domain.RoleGrant{Role: domain.Role(role), Account: common.BytesToAddress(account)})
				return nil
			}},
		{"actor_ticks", `SELECT actor, tick FROM actor_ticks ORDER BY actor`,
			func(rows pgx.Rows) error {
				var actor []byte
				var tick uint64
				if err := rows.Scan(&actor, &tick); err != nil {
					return err
				}
				snap.Ticks = append(snap.Ticks, domain.ActorTick{Actor: common.BytesToAddress(actor), Tick: tick})
				return nil
			}},
	}
	for _, l := range loaders {
		if err := s.each(ctx, l.query, l.scan); err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("postgres: load %s: %w", l.name, err)
		}
	}
	return snap, true, nil
}

func (s *LedgerStore) each(ctx context.Context, query string, scan func(pgx.Rows) error) error {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanAccountAmount(dst *[]domain.AccountAmount) func(pgx.Rows) error {
	return func(rows pgx.Rows) error {
		var account []byte
		var amount int64
		if err := rows.Scan(&account, &amount); err != nil {
			return err
		}
		*dst = append(*dst, domain.AccountAmount{Account: common.BytesToAddress(account), Amount: domain.Amount(amount)})
		return nil
	}
}
