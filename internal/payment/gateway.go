package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"codemart/internal/config"
	"codemart/internal/logger"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway is the payment collaborator contract the orchestrator depends on.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error)
	VerifySignature(intentRef, confirmationRef, signature string) bool
	KeyID() string
}

// Client talks to a Razorpay-style gateway: payment intents are opened
// over HTTP with basic auth, confirmations are verified offline with an
// HMAC over "<intent_ref>|<confirmation_ref>".
type Client struct {
	cfg    config.GatewayConfig
	http   *http.Client
	logger *logger.Logger
}

func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log,
	}
}

func (c *Client) KeyID() string {
	return c.cfg.KeyID
}

type intentRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
}

type intentResponse struct {
	ID string `json:"id"`
}

// CreateIntent opens a remote payment intent for the given amount in
// minor currency units and returns the gateway's intent reference.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	c.logger.LogPayment("CREATE_INTENT", "-", fmt.Sprintf("Opening intent for %d %s (minor units)", amountMinor, currency))

	body, err := json.Marshal(intentRequest{
		Amount:         amountMinor,
		Currency:       currency,
		PaymentCapture: 1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("PAYMENT", fmt.Sprintf("Gateway request failed: %v", err))
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("PAYMENT", fmt.Sprintf("Gateway returned status %d: %s", resp.StatusCode, string(raw)))
		return "", fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var intent intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if intent.ID == "" {
		return "", fmt.Errorf("%w: empty intent reference", ErrGatewayUnavailable)
	}

	c.logger.LogPayment("CREATE_INTENT", intent.ID, "Intent opened")
	return intent.ID, nil
}

// VerifySignature checks a payment confirmation against the shared key
// secret. The gateway signs "<intent_ref>|<confirmation_ref>" with
// HMAC-SHA256 and sends the hex digest back through the client.
func (c *Client) VerifySignature(intentRef, confirmationRef, signature string) bool {
	return VerifySignature(c.cfg.KeySecret, intentRef, confirmationRef, signature)
}

// VerifySignature is the raw signature primitive, constant-time on the
// digest comparison.
func VerifySignature(secret, intentRef, confirmationRef, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentRef + "|" + confirmationRef))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
