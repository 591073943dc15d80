// Package auditservice manages the asynchronous audit sink.
//
// Recording never blocks the ledger path: events are masked, queued on
// a buffered channel and persisted by a single worker goroutine. A
// failed append is retried out-of-band and, after exhaustion, logged
// and dropped; it never rolls back the balance mutation it describes.
package auditservice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Repo provides data access layer interface needed by the audit sink.
type Repo interface {
	Append(ctx context.Context, e domain.AuditEvent) (domain.AuditEvent, error)
	Verify(ctx context.Context) (int64, error)
	List(ctx context.Context, limit, offset int32) ([]domain.AuditEvent, error)
}

const (
	defaultBufferSize = 1024
	appendTimeout     = 5 * time.Second
	maxAttempts       = 3
	retryBackoff      = 200 * time.Millisecond
)

// maskedFragments are payload key fragments whose values never reach
// the audit store in clear.
var maskedFragments = []string{"token", "password", "secret", "sign", "key"}

// Service is the asynchronous audit sink.
type Service struct {
	repo   Repo
	logger zerolog.Logger
	events chan domain.AuditEvent
	wg     sync.WaitGroup
}

// New starts the audit sink worker. bufferSize <= 0 selects the default.
func New(r Repo, logger zerolog.Logger, bufferSize int) *Service {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	s := &Service{
		repo:   r,
		logger: logger.With().Str("component", "audit").Logger(),
		events: make(chan domain.AuditEvent, bufferSize),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Record queues one audit event. It never blocks: when the buffer is
// full the event is logged and dropped rather than stalling a balance
// mutation.
func (s *Service) Record(event domain.AuditEvent) {
	event.Payload = MaskPayload(event.Payload)

	select {
	case s.events <- event:
	default:
		s.logger.Error().
			Str("action", event.Action).
			Int64("transaction_id", event.TransactionID).
			Msg("audit buffer full, event dropped")
	}
}

// Close drains the queue and stops the worker.
func (s *Service) Close() {
	close(s.events)
	s.wg.Wait()
}

// Verify recomputes the stored hash chain. It returns the id of the
// first corrupted entry, or 0 when the chain is intact.
func (s *Service) Verify(ctx context.Context) (int64, error) {
	return s.repo.Verify(ctx)
}

// List returns audit entries in chain order.
func (s *Service) List(ctx context.Context, pageSize, pageID int32) ([]domain.AuditEvent, error) {
	limit := pageSize
	offset := (pageID - 1) * pageSize

	return s.repo.List(ctx, limit, offset)
}

func (s *Service) run() {
	defer s.wg.Done()

	for event := range s.events {
		s.persist(event)
	}
}

func (s *Service) persist(event domain.AuditEvent) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(s.logger.WithContext(context.Background()), appendTimeout)
		_, err := s.repo.Append(ctx, event)
		cancel()

		if err == nil {
			return
		}

		s.logger.Warn().Err(err).
			Int("attempt", attempt).
			Str("action", event.Action).
			Msg("audit append failed")

		time.Sleep(retryBackoff * time.Duration(attempt))
	}

	s.logger.Error().
		Str("action", event.Action).
		Int64("transaction_id", event.TransactionID).
		Msg("audit event dropped after retries")
}

// MaskPayload redacts secret-bearing payload values. The input map is
// not modified.
func MaskPayload(payload map[string]string) map[string]string {
	if len(payload) == 0 {
		return payload
	}

	masked := make(map[string]string, len(payload))

	for k, v := range payload {
		if sensitiveKey(k) {
			masked[k] = "***"
			continue
		}

		masked[k] = v
	}

	return masked
}

func sensitiveKey(key string) bool {
	lower := strings.ToLower(key)

	for _, fragment := range maskedFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}

	return false
}
