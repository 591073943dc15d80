package auditrepo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/goldspin/casino-ledger/internal/domain"
)

// GenesisHash anchors the first entry of the audit chain.
const GenesisHash = "GENESIS"

// ComputeHash derives the chain hash of an audit event from the
// previous entry's hash and the event's immutable fields. Any rewrite
// of a persisted entry breaks every hash after it.
func ComputeHash(prev string, e domain.AuditEvent) string {
	h := sha256.New()
	_, _ = h.Write([]byte(prev))
	_, _ = h.Write([]byte(fmt.Sprintf("|%d|%s|%s|%s", e.TransactionID, e.Action, e.Actor, e.PlayerID)))
	_, _ = h.Write([]byte("|" + e.Amount + "|" + e.BalanceBefore + "|" + e.BalanceAfter))
	_, _ = h.Write([]byte("|" + e.RecordedAt.UTC().Format("2006-01-02T15:04:05.999999999Z")))
	_, _ = h.Write([]byte("|" + flattenPayload(e.Payload)))

	return hex.EncodeToString(h.Sum(nil))
}

func flattenPayload(payload map[string]string) string {
	if len(payload) == 0 {
		return ""
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+payload[k])
	}

	return strings.Join(parts, "&")
}
