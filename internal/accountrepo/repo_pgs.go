// Package accountrepo manages repository layer of player accounts.
package accountrepo

import (
	"context"
	"database/sql"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/pkg/dbpkg"
	"github.com/goldspin/casino-ledger/pkg/errorspkg"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const addBalanceQuery = `
UPDATE accounts
SET balance = balance + $1,
    updated_at = now()
WHERE player_id = $2 AND status = 'active'
RETURNING player_id, balance, currency, status, created_at, updated_at
`

// AddBalance applies a signed delta to the account balance and returns
// the changed account.
//
// The update is the single atomicity point of the ledger: the
// accounts_balance_check constraint rejects any delta that would drive
// the balance negative, so two concurrent debits can never both succeed
// when only one can be funded.
func (r *RepoPGS) AddBalance(ctx context.Context, amount, playerID string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, addBalanceQuery, amount, playerID)

	var a domain.Account

	err := row.Scan(
		&a.PlayerID,
		&a.Balance,
		&a.Currency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			// Distinguish a missing account from a disabled one.
			existing, gerr := r.Get(ctx, playerID)
			if gerr != nil {
				return a, gerr
			}

			if existing.Status == domain.AccountStatusDisabled {
				return a, domain.ErrAccountDisabled
			}

			return a, errorspkg.ErrInternal
		}

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "accounts_balance_check" {
				return a, domain.ErrInsufficientBalance
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const createQuery = `
INSERT INTO
    accounts (player_id, balance, currency)
VALUES
    ($1, $2, $3)
RETURNING player_id, balance, currency, status, created_at, updated_at
`

// Create creates the account and then returns it.
func (r *RepoPGS) Create(ctx context.Context, playerID, balance, currency string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, playerID, balance, currency)

	var a domain.Account

	err := row.Scan(
		&a.PlayerID,
		&a.Balance,
		&a.Currency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Constraint == "accounts_pkey" {
				return a, domain.ErrAccountAlreadyExists
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getQuery = `
SELECT
	player_id, balance, currency, status, created_at, updated_at
FROM accounts
WHERE player_id = $1
`

// Get returns the account with the given player id.
func (r *RepoPGS) Get(ctx context.Context, playerID string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, playerID)

	var a domain.Account

	err := row.Scan(
		&a.PlayerID,
		&a.Balance,
		&a.Currency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const listQuery = `
SELECT
	player_id, balance, currency, status, created_at, updated_at
FROM accounts
ORDER BY balance DESC, player_id
LIMIT $1 OFFSET $2
`

// List returns accounts ordered by balance for the finance screens.
func (r *RepoPGS) List(ctx context.Context, limit, offset int32) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.PlayerID, &a.Balance, &a.Currency, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const setStatusQuery = `
UPDATE accounts
SET status = $1,
    updated_at = now()
WHERE player_id = $2
RETURNING player_id, balance, currency, status, created_at, updated_at
`

// SetStatus changes the account lifecycle status. Accounts are never
// deleted; disabling is the terminal operation.
func (r *RepoPGS) SetStatus(ctx context.Context, playerID, status string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, setStatusQuery, status, playerID)

	var a domain.Account

	err := row.Scan(
		&a.PlayerID,
		&a.Balance,
		&a.Currency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	if err != nil {
		l.Error().Err(err).Send()

		if err == sql.ErrNoRows {
			return a, domain.ErrAccountNotFound
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}
