package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"coinshop-coupons/internal/domain"
	"coinshop-coupons/internal/domain/model"
	"coinshop-coupons/internal/domain/ports/adapter"
	"coinshop-coupons/internal/domain/ports/repository"
)

var _ adapter.PaymentVerifier = (*HTTPVerifier)(nil)

// HTTPVerifier confirms purchases against the external wallet-intake
// API: GET /api/payment/{txn} returns the reported transfer, PUT on the
// same path flips its redeemed flag. The Tx handle is ignored; the
// remote flag write cannot join a local transaction, so issuance falls
// back to its idempotent two-write sequence.
type HTTPVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPVerifier(baseURL, apiKey string) (*HTTPVerifier, error) {
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid payment api base url %q", baseURL)
	}
	return &HTTPVerifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (v *HTTPVerifier) Name() string { return "http" }

func (v *HTTPVerifier) endpoint(txnID string) string {
	return fmt.Sprintf("%s/api/payment/%s?apiKey=%s", v.baseURL, url.PathEscape(txnID), url.QueryEscape(v.apiKey))
}

// paymentResponse is the wire shape the intake API returns.
type paymentResponse struct {
	ID             string  `json:"id"`
	TxnID          string  `json:"txn_id"`
	Amount         int64   `json:"amount"`
	IsRedeemed     bool    `json:"is_redeemed"`
	Sender         *string `json:"sender"`
	MessageSource  string  `json:"message_source"`
	OriginalSMS    string  `json:"original_sms"`
	ReceiverDevice string  `json:"receiver_device"`
	ReceiverEmail  string  `json:"receiver_email"`
	ReceivedTime   int64   `json:"received_time"`
	SentTime       int64   `json:"sent_time"`
	Error          string  `json:"error,omitempty"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, _ repository.Tx, txnID string) (*model.Purchase, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint(txnID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrPurchaseNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment api status %d", resp.StatusCode)
	}

	var out paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	if out.Error != "" || out.ID == "" {
		return nil, domain.ErrPurchaseNotFound
	}

	txn := out.TxnID
	if txn == "" {
		txn = txnID
	}
	return &model.Purchase{
		ID:             out.ID,
		TxnID:          txn,
		Amount:         out.Amount,
		IsRedeemed:     out.IsRedeemed,
		Sender:         out.Sender,
		MessageSource:  out.MessageSource,
		OriginalSMS:    out.OriginalSMS,
		ReceiverDevice: out.ReceiverDevice,
		ReceiverEmail:  out.ReceiverEmail,
		ReceivedTime:   out.ReceivedTime,
		SentTime:       out.SentTime,
	}, nil
}

func (v *HTTPVerifier) MarkRedeemed(ctx context.Context, _ repository.Tx, txnID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, v.endpoint(txnID), nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return domain.ErrPurchaseNotFound
	default:
		return fmt.Errorf("payment api status %d", resp.StatusCode)
	}
}
