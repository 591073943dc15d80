package auditrepo

import (
	"testing"
	"time"

	"github.com/goldspin/casino-ledger/internal/domain"

	"github.com/stretchr/testify/require"
)

func testEvent() domain.AuditEvent {
	return domain.AuditEvent{
		TransactionID: 42,
		Action:        domain.AuditActionApply,
		Actor:         domain.SystemActor,
		PlayerID:      "plr-chain",
		Amount:        "-25",
		BalanceBefore: "100",
		BalanceAfter:  "75",
		Payload:       map[string]string{"round_id": "r-1", "game_id": "g-7"},
		RecordedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestComputeHash(t *testing.T) {
	event := testEvent()

	first := ComputeHash(GenesisHash, event)
	require.NotEmpty(t, first)
	require.Len(t, first, 64)

	t.Run("Deterministic", func(t *testing.T) {
		require.Equal(t, first, ComputeHash(GenesisHash, event))
	})

	t.Run("PayloadOrderIrrelevant", func(t *testing.T) {
		reordered := testEvent()
		reordered.Payload = map[string]string{"game_id": "g-7", "round_id": "r-1"}
		require.Equal(t, first, ComputeHash(GenesisHash, reordered))
	})

	t.Run("ChainsOnPrev", func(t *testing.T) {
		require.NotEqual(t, first, ComputeHash(first, event))
	})

	t.Run("AmountChangesHash", func(t *testing.T) {
		tampered := testEvent()
		tampered.Amount = "-2500"
		require.NotEqual(t, first, ComputeHash(GenesisHash, tampered))
	})

	t.Run("ActorChangesHash", func(t *testing.T) {
		tampered := testEvent()
		tampered.Actor = "adm-mallory"
		require.NotEqual(t, first, ComputeHash(GenesisHash, tampered))
	})

	t.Run("TimestampChangesHash", func(t *testing.T) {
		tampered := testEvent()
		tampered.RecordedAt = tampered.RecordedAt.Add(time.Microsecond)
		require.NotEqual(t, first, ComputeHash(GenesisHash, tampered))
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		event := testEvent()
		event.Payload = nil
		require.NotEmpty(t, ComputeHash(GenesisHash, event))
	})
}

func TestChainLink(t *testing.T) {
	// A three-entry chain recomputes cleanly; rewriting the middle entry
	// breaks every hash after it.
	entries := []domain.AuditEvent{testEvent(), testEvent(), testEvent()}
	entries[1].Action = domain.AuditActionReverse
	entries[2].Action = domain.AuditActionAdjustmentCreated

	prev := GenesisHash
	for i := range entries {
		entries[i].HashPrev = prev
		entries[i].HashCurr = ComputeHash(prev, entries[i])
		prev = entries[i].HashCurr
	}

	prev = GenesisHash
	for _, e := range entries {
		require.Equal(t, prev, e.HashPrev)
		require.Equal(t, e.HashCurr, ComputeHash(prev, e))
		prev = e.HashCurr
	}

	entries[1].Amount = "-9999"
	require.NotEqual(t, entries[1].HashCurr, ComputeHash(entries[1].HashPrev, entries[1]))
}
