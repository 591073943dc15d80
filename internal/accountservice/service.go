// Package accountservice manages business logic layer of player accounts.
package accountservice

import (
	"context"

	"github.com/goldspin/casino-ledger/internal/domain"
)

// Repo provides data access layer interface needed by account service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package accountservice
type Repo interface {
	Create(ctx context.Context, playerID, balance, currency string) (domain.Account, error)
	Get(ctx context.Context, playerID string) (domain.Account, error)
	List(ctx context.Context, limit, offset int32) ([]domain.Account, error)
	SetStatus(ctx context.Context, playerID, status string) (domain.Account, error)
}

// Service facilitates account service layer logic.
type Service struct {
	repo Repo
}

// New returns account service struct to manage account bussines logic.
func New(ar Repo) *Service {
	return &Service{repo: ar}
}

// Create creates an account with zero balance for the given player.
func (s *Service) Create(ctx context.Context, playerID, currency string) (domain.Account, error) {
	account, err := s.repo.Create(ctx, playerID, "0", currency)
	if err != nil {
		return account, err
	}

	return account, nil
}

// Get returns the account for the given player id.
func (s *Service) Get(ctx context.Context, playerID string) (domain.Account, error) {
	account, err := s.repo.Get(ctx, playerID)
	if err != nil {
		return account, err
	}

	return account, nil
}

// List returns accounts ordered by balance.
func (s *Service) List(ctx context.Context, pageSize, pageID int32) ([]domain.Account, error) {
	limit := pageSize
	offset := (pageID - 1) * pageSize

	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	return accounts, err
}

// Disable soft-disables the account. Disabled accounts reject balance
// mutations but keep their history.
func (s *Service) Disable(ctx context.Context, playerID string) (domain.Account, error) {
	account, err := s.repo.SetStatus(ctx, playerID, domain.AccountStatusDisabled)
	if err != nil {
		return account, err
	}

	return account, nil
}
