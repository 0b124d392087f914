package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codemart/internal/config"
	"codemart/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(secret, intentRef, confirmationRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentRef + "|" + confirmationRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test_secret"
	sig := signPayload(secret, "intent-1", "pay-1")

	assert.True(t, VerifySignature(secret, "intent-1", "pay-1", sig))

	// Any field tampering breaks the signature.
	assert.False(t, VerifySignature(secret, "intent-2", "pay-1", sig))
	assert.False(t, VerifySignature(secret, "intent-1", "pay-2", sig))
	assert.False(t, VerifySignature("other_secret", "intent-1", "pay-1", sig))
	assert.False(t, VerifySignature(secret, "intent-1", "pay-1", "deadbeef"))
	assert.False(t, VerifySignature(secret, "intent-1", "pay-1", ""))
}

func TestClientVerifySignatureUsesConfiguredSecret(t *testing.T) {
	client := NewClient(config.GatewayConfig{KeySecret: "s3cret"}, logger.NewLogger())

	sig := signPayload("s3cret", "intent-1", "pay-1")
	assert.True(t, client.VerifySignature("intent-1", "pay-1", sig))
	assert.False(t, client.VerifySignature("intent-1", "pay-1", signPayload("wrong", "intent-1", "pay-1")))
}

func TestCreateIntent(t *testing.T) {
	var gotAuthUser, gotAuthPass string
	var gotBody intentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)

		var ok bool
		gotAuthUser, gotAuthPass, ok = r.BasicAuth()
		require.True(t, ok)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "order_ABC123"})
	}))
	defer server.Close()

	client := NewClient(config.GatewayConfig{
		BaseURL:   server.URL,
		KeyID:     "key_id",
		KeySecret: "key_secret",
		Currency:  "INR",
	}, logger.NewLogger())

	ref, err := client.CreateIntent(context.Background(), 8000, "INR")
	require.NoError(t, err)

	assert.Equal(t, "order_ABC123", ref)
	assert.Equal(t, "key_id", gotAuthUser)
	assert.Equal(t, "key_secret", gotAuthPass)
	assert.Equal(t, int64(8000), gotBody.Amount)
	assert.Equal(t, "INR", gotBody.Currency)
	assert.Equal(t, 1, gotBody.PaymentCapture)
}

func TestCreateIntentGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad auth"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(config.GatewayConfig{BaseURL: server.URL}, logger.NewLogger())

	_, err := client.CreateIntent(context.Background(), 8000, "INR")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestCreateIntentEmptyReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	client := NewClient(config.GatewayConfig{BaseURL: server.URL}, logger.NewLogger())

	_, err := client.CreateIntent(context.Background(), 8000, "INR")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}
