package plaid_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"budgee-ledger/src/plaid"

	"github.com/golang-jwt/jwt/v5"
	plaidapi "github.com/plaid/plaid-go/v41/plaid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keySource struct {
	key   *plaidapi.JWKPublicKey
	calls int
}

func (k *keySource) VerificationKey(ctx context.Context, kid string) (*plaidapi.JWKPublicKey, error) {
	k.calls++
	return k.key, nil
}

func newSigningKey(t *testing.T) (*ecdsa.PrivateKey, *plaidapi.JWKPublicKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	jwk := &plaidapi.JWKPublicKey{
		Kid: "kid-1",
		Kty: "EC",
		Crv: "P-256",
		Alg: "ES256",
		X:   base64.RawURLEncoding.EncodeToString(priv.PublicKey.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(priv.PublicKey.Y.FillBytes(make([]byte, 32))),
	}
	return priv, jwk
}

func sign(t *testing.T, priv *ecdsa.PrivateKey, body []byte, issued time.Time) http.Header {
	t.Helper()
	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iat":                 issued.Unix(),
		"request_body_sha256": hex.EncodeToString(sum[:]),
	})
	token.Header["kid"] = "kid-1"
	signed, err := token.SignedString(priv)
	require.NoError(t, err)
	h := http.Header{}
	h.Set("Plaid-Verification", signed)
	return h
}

func TestWebhookVerifier(t *testing.T) {
	priv, jwk := newSigningKey(t)
	keys := &keySource{key: jwk}
	v := plaid.NewWebhookVerifier(keys)
	ctx := context.Background()
	body := []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`)

	require.NoError(t, v.Verify(ctx, body, sign(t, priv, body, time.Now())))
	require.NoError(t, v.Verify(ctx, body, sign(t, priv, body, time.Now())))
	assert.Equal(t, 1, keys.calls, "keys are cached by kid")

	t.Run("tampered body", func(t *testing.T) {
		err := v.Verify(ctx, []byte(`{"item_id":"other"}`), sign(t, priv, body, time.Now()))
		assert.ErrorContains(t, err, "body hash mismatch")
	})

	t.Run("stale token", func(t *testing.T) {
		err := v.Verify(ctx, body, sign(t, priv, body, time.Now().Add(-10*time.Minute)))
		assert.ErrorContains(t, err, "too old")
	})

	t.Run("missing header", func(t *testing.T) {
		assert.Error(t, v.Verify(ctx, body, http.Header{}))
	})

	t.Run("signed by another key", func(t *testing.T) {
		other, _ := newSigningKey(t)
		assert.Error(t, v.Verify(ctx, body, sign(t, other, body, time.Now())))
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iat": time.Now().Unix()})
		token.Header["kid"] = "kid-1"
		signed, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)
		h := http.Header{}
		h.Set("Plaid-Verification", signed)
		assert.ErrorContains(t, v.Verify(ctx, body, h), "unexpected alg")
	})
}
