// Package helpers provides seed helpers shared by integration tests.
package helpers

import (
	"context"
	"testing"

	"github.com/goldspin/casino-ledger/internal/accountrepo"
	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/internal/ledgerrepo"
	"github.com/goldspin/casino-ledger/pkg/currencypkg"
	"github.com/goldspin/casino-ledger/pkg/dbpkg"
	"github.com/goldspin/casino-ledger/pkg/randompkg"
)

// SeedAccount creates an active account with the given opening balance.
func SeedAccount(t *testing.T, db dbpkg.SQLInterface, balance string) domain.Account {
	t.Helper()

	account, err := accountrepo.NewRepoPGS(db).Create(context.Background(), randompkg.PlayerID(), balance, currencypkg.USD)
	if err != nil {
		t.Fatalf("accountrepo Create returned error: %v", err)
	}

	return account
}

// SeedAccountWith1000USD creates an active account funded for debits.
func SeedAccountWith1000USD(t *testing.T, db dbpkg.SQLInterface) domain.Account {
	t.Helper()

	return SeedAccount(t, db, "1000")
}

// SeedDisabledAccount creates an account and disables it.
func SeedDisabledAccount(t *testing.T, db dbpkg.SQLInterface) domain.Account {
	t.Helper()

	repo := accountrepo.NewRepoPGS(db)

	account, err := repo.Create(context.Background(), randompkg.PlayerID(), "0", currencypkg.USD)
	if err != nil {
		t.Fatalf("accountrepo Create returned error: %v", err)
	}

	account, err = repo.SetStatus(context.Background(), account.PlayerID, domain.AccountStatusDisabled)
	if err != nil {
		t.Fatalf("accountrepo SetStatus returned error: %v", err)
	}

	return account
}

// SeedPendingTransaction writes a pending row with no balance effect.
func SeedPendingTransaction(t *testing.T, db dbpkg.SQLInterface, arg domain.CreateTransactionParams) domain.Transaction {
	t.Helper()

	pending, err := ledgerrepo.NewTxRepoPGS(db).CreatePending(context.Background(), arg)
	if err != nil {
		t.Fatalf("ledgerrepo CreatePending(%+v) returned error: %v", arg, err)
	}

	return pending
}
