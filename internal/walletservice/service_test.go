package walletservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/internal/ledgerservice"
	"github.com/goldspin/casino-ledger/pkg/currencypkg"
	"github.com/goldspin/casino-ledger/pkg/randompkg"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

const testNotifyURL = "https://ledger.test/webhooks/payment"

func TestCreateDeposit(t *testing.T) {
	playerID := randompkg.PlayerID()

	activeAccount := domain.Account{
		PlayerID: playerID,
		Balance:  "0",
		Currency: currencypkg.USDTTRC20,
		Status:   domain.AccountStatusActive,
	}

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledger := NewMockLedger(ctrl)
		accounts := NewMockAccountGetter(ctrl)
		provider := NewMockPaymentProvider(ctrl)

		accounts.EXPECT().
			Get(gomock.Any(), gomock.Eq(playerID)).
			Times(1).
			Return(activeAccount, nil)

		var orderRef string

		ledger.EXPECT().
			CreateOrder(gomock.Any(), gomock.Any()).
			Times(1).
			DoAndReturn(func(_ context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
				require.Equal(t, domain.KindDeposit, arg.Kind)
				require.Equal(t, "100", arg.Amount)
				require.Equal(t, currencypkg.USDTTRC20, arg.Currency)
				require.True(t, strings.HasPrefix(arg.ExternalRef, "DEP-"))

				orderRef = arg.ExternalRef

				return domain.Transaction{ID: 11, PlayerID: playerID, ExternalRef: arg.ExternalRef, Status: domain.StatusPending}, nil
			})

		provider.EXPECT().
			CreateOrder(gomock.Any(), gomock.Any()).
			Times(1).
			DoAndReturn(func(_ context.Context, arg PaymentOrderParams) (PaymentOrder, error) {
				require.Equal(t, orderRef, arg.OrderID)
				require.Equal(t, testNotifyURL, arg.NotifyURL)

				return PaymentOrder{PaymentURL: "https://pay.test/checkout/42"}, nil
			})

		ledger.EXPECT().
			SetPaymentURL(gomock.Any(), gomock.Eq(int64(11)), gomock.Eq("https://pay.test/checkout/42")).
			Times(1).
			Return(domain.Transaction{ID: 11, PaymentURL: "https://pay.test/checkout/42"}, nil)

		service := New(ledger, accounts, provider, testNotifyURL)

		order, err := service.CreateDeposit(context.Background(), CreateOrderParams{
			PlayerID: playerID,
			Amount:   "100",
		})
		require.NoError(t, err)
		require.Equal(t, "https://pay.test/checkout/42", order.PaymentURL)
	})

	t.Run("ProviderFailureClosesOrder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledger := NewMockLedger(ctrl)
		accounts := NewMockAccountGetter(ctrl)
		provider := NewMockPaymentProvider(ctrl)

		accounts.EXPECT().
			Get(gomock.Any(), gomock.Eq(playerID)).
			Times(1).
			Return(activeAccount, nil)

		ledger.EXPECT().
			CreateOrder(gomock.Any(), gomock.Any()).
			Times(1).
			Return(domain.Transaction{ID: 12, ExternalRef: "DEP-x", Status: domain.StatusPending}, nil)

		providerErr := errors.New("gateway unavailable")

		provider.EXPECT().
			CreateOrder(gomock.Any(), gomock.Any()).
			Times(1).
			Return(PaymentOrder{}, providerErr)

		ledger.EXPECT().
			FailOrder(gomock.Any(), gomock.Eq("DEP-x"), gomock.Eq(domain.KindDeposit), gomock.Any()).
			Times(1).
			Return(domain.Transaction{ID: 12, Status: domain.StatusFailed}, nil)

		ledger.EXPECT().SetPaymentURL(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		service := New(ledger, accounts, provider, testNotifyURL)

		_, err := service.CreateDeposit(context.Background(), CreateOrderParams{
			PlayerID: playerID,
			Amount:   "100",
		})
		require.ErrorIs(t, err, providerErr)
	})

	t.Run("DisabledAccount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledger := NewMockLedger(ctrl)
		accounts := NewMockAccountGetter(ctrl)
		provider := NewMockPaymentProvider(ctrl)

		accounts.EXPECT().
			Get(gomock.Any(), gomock.Eq(playerID)).
			Times(1).
			Return(domain.Account{PlayerID: playerID, Status: domain.AccountStatusDisabled}, nil)

		ledger.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Times(0)

		service := New(ledger, accounts, provider, testNotifyURL)

		_, err := service.CreateDeposit(context.Background(), CreateOrderParams{
			PlayerID: playerID,
			Amount:   "100",
		})
		require.ErrorIs(t, err, domain.ErrAccountDisabled)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledger := NewMockLedger(ctrl)
		accounts := NewMockAccountGetter(ctrl)
		provider := NewMockPaymentProvider(ctrl)

		accounts.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)

		service := New(ledger, accounts, provider, testNotifyURL)

		for _, amount := range []string{"-100", "0", "ten"} {
			_, err := service.CreateDeposit(context.Background(), CreateOrderParams{
				PlayerID: playerID,
				Amount:   amount,
			})
			require.ErrorIs(t, err, domain.ErrInvalidAmount)
		}
	})
}

func TestCreateWithdrawal(t *testing.T) {
	playerID := randompkg.PlayerID()

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ledger := NewMockLedger(ctrl)
		accounts := NewMockAccountGetter(ctrl)
		provider := NewMockPaymentProvider(ctrl)

		ledger.EXPECT().
			CreateAdjustment(gomock.Any(), gomock.Any()).
			Times(1).
			DoAndReturn(func(_ context.Context, arg ledgerservice.CreateAdjustmentParams) (domain.Transaction, error) {
				require.Equal(t, domain.KindWithdrawal, arg.Kind)
				require.Equal(t, "-75", arg.Amount)
				require.Equal(t, playerID, arg.PlayerID)

				return domain.Transaction{ID: 13, Kind: arg.Kind, Amount: arg.Amount, Status: domain.StatusPending}, nil
			})

		service := New(ledger, accounts, provider, testNotifyURL)

		pending, err := service.CreateWithdrawal(context.Background(), CreateOrderParams{
			PlayerID: playerID,
			Amount:   "75",
		})
		require.NoError(t, err)
		require.Equal(t, domain.StatusPending, pending.Status)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		service := New(NewMockLedger(ctrl), NewMockAccountGetter(ctrl), NewMockPaymentProvider(ctrl), testNotifyURL)

		_, err := service.CreateWithdrawal(context.Background(), CreateOrderParams{
			PlayerID: playerID,
			Amount:   "-75",
		})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}
