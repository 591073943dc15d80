// Package ledgerrepo manages the transaction store and the atomic
// balance-affecting operations of the ledger.
//
// Every mutation runs inside a single database transaction. The unique
// constraint over (external_ref, kind) is the serialization point for
// duplicate delivery: only one concurrent caller wins the insert, the
// loser reads back the winner's committed row.
package ledgerrepo

import (
	"context"
	"database/sql"

	"github.com/goldspin/casino-ledger/internal/accountrepo"
	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/pkg/dbpkg"
	"github.com/goldspin/casino-ledger/pkg/errorspkg"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates ledger repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns ledger RepoPGS bound to an existing transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

// NewRepoPGS returns ledger RepoPGS with a connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const transactionColumns = `
	id, player_id, kind, status, amount, currency, external_ref,
	balance_before, balance_after, round_id, payment_url,
	created_by, approved_by, remarks, created_at, approved_at
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		t             domain.Transaction
		balanceBefore sql.NullString
		balanceAfter  sql.NullString
		roundID       sql.NullString
		paymentURL    sql.NullString
		approvedBy    sql.NullString
		remarks       sql.NullString
		approvedAt    sql.NullTime
	)

	err := row.Scan(
		&t.ID,
		&t.PlayerID,
		&t.Kind,
		&t.Status,
		&t.Amount,
		&t.Currency,
		&t.ExternalRef,
		&balanceBefore,
		&balanceAfter,
		&roundID,
		&paymentURL,
		&t.CreatedBy,
		&approvedBy,
		&remarks,
		&t.CreatedAt,
		&approvedAt,
	)
	if err != nil {
		return t, err
	}

	t.BalanceBefore = balanceBefore.String
	t.BalanceAfter = balanceAfter.String
	t.RoundID = roundID.String
	t.PaymentURL = paymentURL.String
	t.ApprovedBy = approvedBy.String
	t.Remarks = remarks.String
	t.ApprovedAt = approvedAt.Time

	return t, nil
}

const insertPendingQuery = `
INSERT INTO
	transactions (player_id, kind, status, amount, currency, external_ref, round_id, created_by, remarks)
VALUES
	($1, $2, 'pending', $3, $4, $5, $6, $7, $8)
ON CONFLICT ON CONSTRAINT transactions_external_ref_kind_key DO NOTHING
RETURNING ` + transactionColumns

const completeQuery = `
UPDATE transactions
SET status = 'completed',
    balance_before = $1,
    balance_after = $2,
    approved_by = $3,
    approved_at = now()
WHERE id = $4
RETURNING ` + transactionColumns

// ApplyEvent applies an external balance event with at-most-one balance
// effect per (external_ref, kind).
//
// Within one database transaction it inserts the transaction row, moves
// the balance and stamps the before/after snapshots. A conflicting
// insert reports the already-committed row instead; insufficient funds
// roll the whole transaction back, leaving no row behind so a later
// funded retry can still succeed.
func (r *RepoPGS) ApplyEvent(ctx context.Context, arg domain.CreateTransactionParams) (domain.ApplyResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.ApplyResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	row := tx.QueryRowContext(ctx, insertPendingQuery,
		arg.PlayerID,
		arg.Kind,
		arg.Amount,
		arg.Currency,
		arg.ExternalRef,
		nullIfEmpty(arg.RoundID),
		arg.CreatedBy,
		nullIfEmpty(arg.Remarks),
	)

	pending, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			// Lost the insert race or replayed delivery: the winner's
			// row is committed by now. Return it untouched.
			existing, ferr := r.FindByExternalRef(ctx, arg.ExternalRef, arg.Kind)
			if ferr != nil {
				return result, ferr
			}

			return domain.ApplyResult{Transaction: existing, Duplicate: true}, nil
		}

		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "transactions_player_id_fkey" {
				return result, domain.ErrAccountNotFound
			}
		}

		return result, errorspkg.ErrInternal
	}

	account, err := accountrepo.NewRepoPGS(tx).AddBalance(ctx, arg.Amount, arg.PlayerID)
	if err != nil {
		return result, err
	}

	completed, err := completeRow(ctx, tx, pending.ID, account.Balance, arg.Amount, "")
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return domain.ApplyResult{Transaction: completed}, nil
}

// completeRow stamps balance snapshots and flips the row to completed.
// balanceAfter is the balance returned by AddBalance; the before
// snapshot is derived so that balance_after = balance_before + amount
// holds exactly at the instant of the write.
func completeRow(ctx context.Context, tx dbpkg.SQLInterface, id int64, balanceAfter, amount, approver string) (domain.Transaction, error) {
	after, err := decimal.NewFromString(balanceAfter)
	if err != nil {
		return domain.Transaction{}, err
	}

	delta, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.Transaction{}, err
	}

	before := after.Sub(delta)

	row := tx.QueryRowContext(ctx, completeQuery, before.String(), after.String(), nullIfEmpty(approver), id)

	return scanTransaction(row)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}

	return s
}

const findOriginalQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE external_ref = $1 AND kind <> 'rollback' AND status IN ('completed', 'reversed')
ORDER BY id
LIMIT 1
`

const markReversedQuery = `
UPDATE transactions
SET status = 'reversed'
WHERE id = $1 AND status = 'completed'
`

// Reverse writes the compensating transaction for the completed event
// with the given external reference.
//
// The rollback row shares the original's external reference under the
// rollback kind, so replayed reversals collapse onto the first one. The
// inverse delta always comes from the original row, never from the
// caller.
func (r *RepoPGS) Reverse(ctx context.Context, externalRef, actor string) (domain.ApplyResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.ApplyResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	original, err := scanTransaction(tx.QueryRowContext(ctx, findOriginalQuery, externalRef))
	if err != nil {
		if err == sql.ErrNoRows {
			return result, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return result, errorspkg.ErrInternal
	}

	if !domain.ReversibleKind(original.Kind) {
		return result, domain.ErrNotReversible
	}

	amount, err := decimal.NewFromString(original.Amount)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	inverse := amount.Neg().String()

	row := tx.QueryRowContext(ctx, insertPendingQuery,
		original.PlayerID,
		domain.KindRollback,
		inverse,
		original.Currency,
		externalRef,
		nullIfEmpty(original.RoundID),
		actor,
		nil,
	)

	pending, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			existing, ferr := r.FindByExternalRef(ctx, externalRef, domain.KindRollback)
			if ferr != nil {
				return result, ferr
			}

			return domain.ApplyResult{Transaction: existing, Duplicate: true}, nil
		}

		l.Error().Err(err).Send()

		return result, errorspkg.ErrInternal
	}

	account, err := accountrepo.NewRepoPGS(tx).AddBalance(ctx, inverse, original.PlayerID)
	if err != nil {
		// Reversing a credit may fail when the funds were already
		// spent. Surface it; the pending row rolls back with the tx.
		return result, err
	}

	completed, err := completeRow(ctx, tx, pending.ID, account.Balance, inverse, "")
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	if _, err := tx.ExecContext(ctx, markReversedQuery, original.ID); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return domain.ApplyResult{Transaction: completed}, nil
}

// CreatePending writes a pending transaction row with no balance effect.
// Used for manual adjustments and wallet orders awaiting settlement.
func (r *RepoPGS) CreatePending(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, insertPendingQuery,
		arg.PlayerID,
		arg.Kind,
		arg.Amount,
		arg.Currency,
		arg.ExternalRef,
		nullIfEmpty(arg.RoundID),
		arg.CreatedBy,
		nullIfEmpty(arg.Remarks),
	)

	t, err := scanTransaction(row)
	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return t, domain.ErrInvalidTransactionState
		}

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "transactions_player_id_fkey" {
				return t, domain.ErrAccountNotFound
			}
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getForUpdateQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = $1
FOR UPDATE
`

// ApproveAdjustment settles a pending manual adjustment or withdrawal:
// it moves the balance and flips the row to completed, stamping the
// approver. The row lock serializes concurrent approvals; the creator
// may never approve their own adjustment.
func (r *RepoPGS) ApproveAdjustment(ctx context.Context, id int64, approvedBy string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	var result domain.Transaction

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	pending, err := scanTransaction(tx.QueryRowContext(ctx, getForUpdateQuery, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return result, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return result, errorspkg.ErrInternal
	}

	if pending.Kind != domain.KindAdjustment && pending.Kind != domain.KindWithdrawal {
		return result, domain.ErrInvalidKind
	}

	if pending.Status != domain.StatusPending {
		return result, domain.ErrInvalidTransactionState
	}

	if pending.CreatedBy == approvedBy {
		return result, domain.ErrSelfApproval
	}

	account, err := accountrepo.NewRepoPGS(tx).AddBalance(ctx, pending.Amount, pending.PlayerID)
	if err != nil {
		// On insufficient funds the row stays pending: the rollback
		// discards nothing but this read.
		return result, err
	}

	completed, err := completeRow(ctx, tx, pending.ID, account.Balance, pending.Amount, approvedBy)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return completed, nil
}

const rejectQuery = `
UPDATE transactions
SET status = 'failed',
    approved_by = $1,
    approved_at = now(),
    remarks = COALESCE(NULLIF($2, ''), remarks)
WHERE id = $3 AND status = 'pending'
RETURNING ` + transactionColumns

// RejectAdjustment transitions a pending adjustment to failed. Terminal;
// no balance effect.
func (r *RepoPGS) RejectAdjustment(ctx context.Context, id int64, rejectedBy, reason string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, rejectQuery, rejectedBy, reason, id)

	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			if _, gerr := r.Get(ctx, id); gerr != nil {
				return t, gerr
			}

			return t, domain.ErrInvalidTransactionState
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const findDepositForUpdateQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE external_ref = $1 AND kind = 'deposit'
FOR UPDATE
`

// SettleDeposit credits a pending deposit order confirmed by the
// payment provider. Replayed confirmations observe the completed row
// and report a duplicate instead of crediting twice.
func (r *RepoPGS) SettleDeposit(ctx context.Context, externalRef string) (domain.ApplyResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.ApplyResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	order, err := scanTransaction(tx.QueryRowContext(ctx, findDepositForUpdateQuery, externalRef))
	if err != nil {
		if err == sql.ErrNoRows {
			return result, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return result, errorspkg.ErrInternal
	}

	if order.Status == domain.StatusCompleted {
		return domain.ApplyResult{Transaction: order, Duplicate: true}, nil
	}

	if order.Status != domain.StatusPending {
		return result, domain.ErrInvalidTransactionState
	}

	account, err := accountrepo.NewRepoPGS(tx).AddBalance(ctx, order.Amount, order.PlayerID)
	if err != nil {
		return result, err
	}

	completed, err := completeRow(ctx, tx, order.ID, account.Balance, order.Amount, "")
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	return domain.ApplyResult{Transaction: completed}, nil
}

const failPendingQuery = `
UPDATE transactions
SET status = 'failed',
    remarks = COALESCE(NULLIF($1, ''), remarks)
WHERE external_ref = $2 AND kind = $3 AND status = 'pending'
RETURNING ` + transactionColumns

// FailPending transitions a pending wallet order to failed, e.g. when
// the payment provider reports an expired or failed order.
func (r *RepoPGS) FailPending(ctx context.Context, externalRef, kind, reason string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, failPendingQuery, reason, externalRef, kind)

	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			if _, ferr := r.FindByExternalRef(ctx, externalRef, kind); ferr != nil {
				return t, ferr
			}

			return t, domain.ErrInvalidTransactionState
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const setPaymentURLQuery = `
UPDATE transactions
SET payment_url = $1
WHERE id = $2
RETURNING ` + transactionColumns

// SetPaymentURL stores the hosted checkout location returned by the
// payment provider on a deposit order.
func (r *RepoPGS) SetPaymentURL(ctx context.Context, id int64, paymentURL string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, setPaymentURLQuery, paymentURL, id)

	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return t, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = $1
`

// Get returns the transaction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return t, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const findByExternalRefQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE external_ref = $1 AND kind = $2
`

// FindByExternalRef returns the transaction with the given external
// reference and kind.
func (r *RepoPGS) FindByExternalRef(ctx context.Context, externalRef, kind string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, findByExternalRefQuery, externalRef, kind))
	if err != nil {
		if err == sql.ErrNoRows {
			return t, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const listPendingQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE status = 'pending' AND kind IN ('adjustment', 'withdrawal')
ORDER BY id
`

// ListPending returns adjustments and withdrawals awaiting approval.
func (r *RepoPGS) ListPending(ctx context.Context) ([]domain.Transaction, error) {
	return r.queryTransactions(ctx, listPendingQuery)
}

const listByAccountQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE player_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`

// ListByAccount returns the transactions of one account, newest first.
func (r *RepoPGS) ListByAccount(ctx context.Context, playerID string, limit, offset int32) ([]domain.Transaction, error) {
	return r.queryTransactions(ctx, listByAccountQuery, playerID, limit, offset)
}

const listQuery = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE ($1 = '' OR player_id = $1)
  AND ($2 = '' OR kind = $2)
  AND ($3 = '' OR status = $3)
ORDER BY id DESC
LIMIT $4 OFFSET $5
`

// List returns transactions filtered for the finance screens.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	return r.queryTransactions(ctx, listQuery, arg.PlayerID, arg.Kind, arg.Status, arg.Limit, arg.Offset)
}

func (r *RepoPGS) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
