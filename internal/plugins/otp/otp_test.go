package otp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := NewCode("user@portal.com", "+5511999990000", "user-1")
		require.NoError(t, err)

		assert.Len(t, c.Code, 6)
		assert.GreaterOrEqual(t, c.Code, "100000")
		assert.LessOrEqual(t, c.Code, "999999")
		assert.Nil(t, c.ConsumedAt)
		assert.Equal(t, TTL, c.ExpiresAt.Sub(c.CreatedAt))
	}
}

func TestNewCodeUnique(t *testing.T) {
	// Not a strict guarantee, but 900k values over 50 draws colliding on
	// every pair would mean the RNG is broken.
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		c, err := NewCode("user@portal.com", "+5511999990000", "user-1")
		require.NoError(t, err)
		seen[c.Code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestWebhookSenderPostsPayload(t *testing.T) {
	var got map[string]string
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, "secret-token")
	err := sender.Send(context.Background(), "+5511999990000", "123456")

	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, "+5511999990000", got["phone"])
	assert.Equal(t, "123456", got["code"])
}

func TestWebhookSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, "")
	err := sender.Send(context.Background(), "+5511999990000", "123456")
	assert.Error(t, err)
}

func TestWebhookSenderRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	sender := NewWebhookSender(srv.URL, "")
	assert.Error(t, sender.Send(ctx, "+5511999990000", "123456"))
}
