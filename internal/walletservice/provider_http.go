package walletservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goldspin/casino-ledger/internal/webhookdelivery"
	"github.com/goldspin/casino-ledger/pkg/errorspkg"

	"github.com/rs/zerolog"
)

const providerRequestTimeout = 10 * time.Second

// HTTPProvider is the payment processor client. Requests carry the same
// HMAC signature scheme the processor uses on its webhooks.
type HTTPProvider struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewHTTPProvider returns a provider client for the given endpoint.
func NewHTTPProvider(baseURL, secret string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: providerRequestTimeout},
	}
}

type providerOrderRequest struct {
	OrderID   string `json:"order_id"`
	PlayerID  string `json:"player_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	NotifyURL string `json:"notify_url"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
}

type providerOrderResponse struct {
	Result     bool   `json:"result"`
	PaymentURL string `json:"payment_url"`
	Message    string `json:"message"`
}

// CreateOrder implements PaymentProvider.
func (p *HTTPProvider) CreateOrder(ctx context.Context, arg PaymentOrderParams) (PaymentOrder, error) {
	l := zerolog.Ctx(ctx)

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	req := providerOrderRequest{
		OrderID:   arg.OrderID,
		PlayerID:  arg.PlayerID,
		Amount:    arg.Amount,
		Currency:  arg.Currency,
		NotifyURL: arg.NotifyURL,
		Timestamp: timestamp,
	}

	req.Signature = webhookdelivery.SignPayload(map[string]string{
		"order_id":   req.OrderID,
		"player_id":  req.PlayerID,
		"amount":     req.Amount,
		"currency":   req.Currency,
		"notify_url": req.NotifyURL,
	}, timestamp, p.secret)

	body, err := json.Marshal(req)
	if err != nil {
		l.Error().Err(err).Send()
		return PaymentOrder{}, errorspkg.ErrInternal
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		l.Error().Err(err).Send()
		return PaymentOrder{}, errorspkg.ErrInternal
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		l.Error().Err(err).Str("order_id", arg.OrderID).Send()
		return PaymentOrder{}, errorspkg.ErrUpstreamTimeout
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PaymentOrder{}, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var result providerOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		l.Error().Err(err).Send()
		return PaymentOrder{}, errorspkg.ErrInternal
	}

	if !result.Result {
		return PaymentOrder{}, fmt.Errorf("payment provider rejected order: %s", result.Message)
	}

	return PaymentOrder{PaymentURL: result.PaymentURL}, nil
}
