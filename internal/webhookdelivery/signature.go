package webhookdelivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SignPayload computes the webhook signature: HMAC-SHA256 over the
// non-empty payload fields sorted by key and joined as k=v pairs, with
// the timestamp appended last. The signature field itself is excluded.
func SignPayload(fields map[string]string, timestamp, secret string) string {
	keys := make([]string, 0, len(fields))

	for k, v := range fields {
		if k == "signature" || k == "timestamp" || v == "" {
			continue
		}

		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}

	parts = append(parts, "timestamp="+timestamp)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strings.Join(parts, "&")))

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func VerifySignature(fields map[string]string, timestamp, secret, signature string) bool {
	if signature == "" {
		return false
	}

	want := SignPayload(fields, timestamp, secret)

	return hmac.Equal([]byte(want), []byte(strings.ToLower(signature)))
}
