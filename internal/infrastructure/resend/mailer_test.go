package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigured(t *testing.T) {
	assert.True(t, NewMailer("re_abc123", "shop@example.com").Configured())
	assert.False(t, NewMailer("", "shop@example.com").Configured())
	assert.False(t, NewMailer("re_", "shop@example.com").Configured())
	assert.False(t, NewMailer("sk_abc123", "shop@example.com").Configured())
	assert.False(t, NewMailer("re_abc123", "").Configured())
}

func TestSendEmail_PostsToAPI(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_abc123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer srv.Close()

	m := NewMailer("re_abc123", "shop@example.com").WithBaseURL(srv.URL)
	require.NoError(t, m.SendEmail(context.Background(), "a@b.com", "Your code", "482913"))

	assert.Equal(t, "shop@example.com", got.From)
	assert.Equal(t, []string{"a@b.com"}, got.To)
	assert.Equal(t, "Your code", got.Subject)
	assert.Equal(t, "482913", got.Text)
}

func TestSendEmail_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	err := NewMailer("re_abc123", "shop@example.com").WithBaseURL(srv.URL).
		SendEmail(context.Background(), "a@b.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "invalid from")
}
