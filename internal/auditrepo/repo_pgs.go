// Package auditrepo manages the append-only audit trail.
//
// Entries are hash-chained: each row stores the hash of its
// predecessor and its own, so tampering with history is detectable by
// recomputing the chain. The application never updates or deletes rows;
// retention is a database concern.
package auditrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/pkg/dbpkg"
	"github.com/goldspin/casino-ledger/pkg/errorspkg"

	"github.com/rs/zerolog"
)

// RepoPGS facilitates audit repository layer logic.
//
// Appends are serialized by the single sink worker goroutine; the
// mutex only guards the cached chain tail for Verify callers.
type RepoPGS struct {
	db dbpkg.SQLInterface

	mu   sync.Mutex
	last string
}

// NewRepoPGS returns audit RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const lastHashQuery = `
SELECT hash_curr FROM audit_events
ORDER BY id DESC
LIMIT 1
`

func (r *RepoPGS) tail(ctx context.Context) (string, error) {
	if r.last != "" {
		return r.last, nil
	}

	var last string

	err := r.db.QueryRowContext(ctx, lastHashQuery).Scan(&last)
	if err != nil {
		if err == sql.ErrNoRows {
			return GenesisHash, nil
		}

		return "", err
	}

	return last, nil
}

const appendQuery = `
INSERT INTO
	audit_events (transaction_id, action, actor, player_id, amount,
	              balance_before, balance_after, payload, hash_prev, hash_curr, recorded_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id
`

// Append writes one audit entry linked to the current chain tail.
func (r *RepoPGS) Append(ctx context.Context, e domain.AuditEvent) (domain.AuditEvent, error) {
	l := zerolog.Ctx(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, err := r.tail(ctx)
	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	// The database stores microsecond precision; hash what will be
	// read back so Verify recomputes identical digests.
	e.RecordedAt = e.RecordedAt.UTC().Truncate(time.Microsecond)

	e.HashPrev = prev
	e.HashCurr = ComputeHash(prev, e)

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	err = r.db.QueryRowContext(ctx, appendQuery,
		nullIfZero(e.TransactionID),
		e.Action,
		e.Actor,
		e.PlayerID,
		nullIfEmpty(e.Amount),
		nullIfEmpty(e.BalanceBefore),
		nullIfEmpty(e.BalanceAfter),
		payload,
		e.HashPrev,
		e.HashCurr,
		e.RecordedAt,
	).Scan(&e.ID)

	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	r.last = e.HashCurr

	return e, nil
}

const listQuery = `
SELECT
	id, COALESCE(transaction_id, 0), action, actor, player_id,
	COALESCE(amount::text, ''), COALESCE(balance_before::text, ''), COALESCE(balance_after::text, ''),
	payload, hash_prev, hash_curr, recorded_at
FROM audit_events
ORDER BY id
LIMIT $1 OFFSET $2
`

// List returns audit entries in chain order.
func (r *RepoPGS) List(ctx context.Context, limit, offset int32) ([]domain.AuditEvent, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.AuditEvent{}

	for rows.Next() {
		var (
			e       domain.AuditEvent
			payload []byte
		)

		if err := rows.Scan(
			&e.ID,
			&e.TransactionID,
			&e.Action,
			&e.Actor,
			&e.PlayerID,
			&e.Amount,
			&e.BalanceBefore,
			&e.BalanceAfter,
			&payload,
			&e.HashPrev,
			&e.HashCurr,
			&e.RecordedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		if len(payload) > 0 && string(payload) != "null" {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				l.Error().Err(err).Send()
				return nil, errorspkg.ErrInternal
			}
		}

		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

// Verify walks the whole chain and reports the id of the first entry
// whose stored hash does not match the recomputed one, or 0 when the
// chain is intact.
func (r *RepoPGS) Verify(ctx context.Context) (int64, error) {
	const page = int32(500)

	prev := GenesisHash

	for offset := int32(0); ; offset += page {
		entries, err := r.List(ctx, page, offset)
		if err != nil {
			return 0, err
		}

		if len(entries) == 0 {
			return 0, nil
		}

		for _, e := range entries {
			if e.HashPrev != prev || ComputeHash(prev, e) != e.HashCurr {
				return e.ID, nil
			}

			prev = e.HashCurr
		}
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}

func nullIfZero(n int64) interface{} {
	if n == 0 {
		return nil
	}

	return n
}
