package accountservice

import (
	"context"
	"testing"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/pkg/errorspkg"
	"github.com/goldspin/casino-ledger/pkg/randompkg"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	playerID := randompkg.PlayerID()
	currency := randompkg.Currency()

	account := domain.Account{
		PlayerID: playerID,
		Balance:  "0",
		Currency: currency,
		Status:   domain.AccountStatusActive,
	}

	testCases := []struct {
		name       string
		buildStubs func(repo *MockRepo)
		wantError  error
	}{
		{
			name: "OK",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Create(gomock.Any(), gomock.Eq(playerID), gomock.Eq("0"), gomock.Eq(currency)).
					Times(1).
					Return(account, nil)
			},
		},
		{
			name: "AlreadyExists",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Create(gomock.Any(), gomock.Eq(playerID), gomock.Eq("0"), gomock.Eq(currency)).
					Times(1).
					Return(domain.Account{}, domain.ErrAccountAlreadyExists)
			},
			wantError: domain.ErrAccountAlreadyExists,
		},
		{
			name: "InternalError",
			buildStubs: func(repo *MockRepo) {
				repo.EXPECT().
					Create(gomock.Any(), gomock.Eq(playerID), gomock.Eq("0"), gomock.Eq(currency)).
					Times(1).
					Return(domain.Account{}, errorspkg.ErrInternal)
			},
			wantError: errorspkg.ErrInternal,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRepo(ctrl)
			tc.buildStubs(repo)

			service := New(repo)

			got, err := service.Create(context.Background(), playerID, currency)

			if tc.wantError != nil {
				require.ErrorIs(t, err, tc.wantError)
				return
			}

			require.NoError(t, err)

			if diff := cmp.Diff(account, got); diff != "" {
				t.Errorf("account mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet(t *testing.T) {
	playerID := randompkg.PlayerID()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	repo.EXPECT().
		Get(gomock.Any(), gomock.Eq(playerID)).
		Times(1).
		Return(domain.Account{PlayerID: playerID, Balance: "55"}, nil)

	service := New(repo)

	account, err := service.Get(context.Background(), playerID)
	require.NoError(t, err)
	require.Equal(t, "55", account.Balance)
}

func TestList(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := []domain.Account{
		{PlayerID: randompkg.PlayerID(), Balance: "200"},
		{PlayerID: randompkg.PlayerID(), Balance: "100"},
	}

	repo := NewMockRepo(ctrl)
	repo.EXPECT().
		List(gomock.Any(), gomock.Eq(int32(10)), gomock.Eq(int32(10))).
		Times(1).
		Return(accounts, nil)

	service := New(repo)

	got, err := service.List(context.Background(), 10, 2)
	require.NoError(t, err)

	if diff := cmp.Diff(accounts, got); diff != "" {
		t.Errorf("accounts mismatch (-want +got):\n%s", diff)
	}
}

func TestDisable(t *testing.T) {
	playerID := randompkg.PlayerID()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRepo(ctrl)
	repo.EXPECT().
		SetStatus(gomock.Any(), gomock.Eq(playerID), gomock.Eq(domain.AccountStatusDisabled)).
		Times(1).
		Return(domain.Account{PlayerID: playerID, Status: domain.AccountStatusDisabled}, nil)

	service := New(repo)

	account, err := service.Disable(context.Background(), playerID)
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusDisabled, account.Status)
}
