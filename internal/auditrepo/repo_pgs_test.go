//go:build integration

package auditrepo_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/goldspin/casino-ledger/internal/auditrepo"
	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/internal/integrationtest"
	"github.com/goldspin/casino-ledger/internal/middleware"
	"github.com/goldspin/casino-ledger/pkg/configpkg"
	"github.com/goldspin/casino-ledger/pkg/randompkg"
)

var (
	dbDriver string
	dbSource string
	ctx      context.Context
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	dbDriver = config.DBDriver
	dbSource = config.DBSource

	logger := middleware.CreateLogger(config)
	ctx = logger.WithContext(context.Background())

	os.Exit(m.Run())
}

func auditEvent(action string) domain.AuditEvent {
	return domain.AuditEvent{
		Action:     action,
		Actor:      domain.SystemActor,
		PlayerID:   randompkg.PlayerID(),
		Amount:     randompkg.MoneyAmountBetween(1, 100),
		Payload:    map[string]string{"round_id": "round-" + randompkg.String(6)},
		RecordedAt: time.Now().UTC(),
	}
}

func TestAppend(t *testing.T) {
	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	repo := auditrepo.NewRepoPGS(tx)

	first, err := repo.Append(ctx, auditEvent(domain.AuditActionApply))
	if err != nil {
		t.Fatalf("repo.Append returned error: %v", err)
	}

	if first.HashPrev != auditrepo.GenesisHash {
		t.Errorf("first.HashPrev = %v, want genesis", first.HashPrev)
	}

	if first.ID == 0 {
		t.Error("first.ID = 0, want non-zero")
	}

	second, err := repo.Append(ctx, auditEvent(domain.AuditActionReverse))
	if err != nil {
		t.Fatalf("repo.Append returned error: %v", err)
	}

	if second.HashPrev != first.HashCurr {
		t.Errorf("second.HashPrev = %v, want %v", second.HashPrev, first.HashCurr)
	}

	t.Run("ListReturnsChainOrder", func(t *testing.T) {
		entries, err := repo.List(ctx, 10, 0)
		if err != nil {
			t.Fatalf("repo.List returned error: %v", err)
		}

		if len(entries) != 2 {
			t.Fatalf("len(entries) = %v, want 2", len(entries))
		}

		if entries[0].ID != first.ID || entries[1].ID != second.ID {
			t.Errorf("entries = [%v %v], want [%v %v]", entries[0].ID, entries[1].ID, first.ID, second.ID)
		}

		if entries[0].Payload["round_id"] == "" {
			t.Error("entries[0].Payload round_id is empty, want persisted payload")
		}
	})

	t.Run("VerifyReportsIntactChain", func(t *testing.T) {
		firstBroken, err := repo.Verify(ctx)
		if err != nil {
			t.Fatalf("repo.Verify returned error: %v", err)
		}

		if firstBroken != 0 {
			t.Errorf("repo.Verify = %v, want 0", firstBroken)
		}
	})

	t.Run("RowsAreImmutable", func(t *testing.T) {
		// The audit_events rules swallow UPDATE and DELETE statements.
		if _, err := tx.ExecContext(ctx, "UPDATE audit_events SET amount = 0 WHERE id = $1", first.ID); err != nil {
			t.Fatalf("update attempt returned error: %v", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM audit_events WHERE id = $1", first.ID); err != nil {
			t.Fatalf("delete attempt returned error: %v", err)
		}

		firstBroken, err := repo.Verify(ctx)
		if err != nil {
			t.Fatalf("repo.Verify returned error: %v", err)
		}

		if firstBroken != 0 {
			t.Errorf("repo.Verify = %v, want 0 after blocked tampering", firstBroken)
		}

		entries, err := repo.List(ctx, 10, 0)
		if err != nil {
			t.Fatalf("repo.List returned error: %v", err)
		}

		if len(entries) != 2 {
			t.Errorf("len(entries) = %v, want 2 after blocked delete", len(entries))
		}
	})
}
