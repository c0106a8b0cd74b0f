package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestOpenLongPostsToCallEndpoint(t *testing.T) {
	var got event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, err := New(Config{CallURL: server.URL, Logger: nopLogger{}})
	require.NoError(t, err)

	require.NoError(t, n.OpenLong(context.Background()))
	assert.Equal(t, "long", got.Side)
	assert.NotEmpty(t, got.EventID)
	assert.NotEmpty(t, got.SentAt)
}

func TestOpenShortPostsToPutEndpoint(t *testing.T) {
	var got event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, err := New(Config{PutURL: server.URL, Logger: nopLogger{}})
	require.NoError(t, err)

	require.NoError(t, n.OpenShort(context.Background()))
	assert.Equal(t, "short", got.Side)
}

func TestMissingEndpointIsNoop(t *testing.T) {
	n, err := New(Config{Logger: nopLogger{}})
	require.NoError(t, err)
	assert.NoError(t, n.OpenLong(context.Background()))
	assert.NoError(t, n.OpenShort(context.Background()))
}

func TestRejectedWebhookIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n, err := New(Config{CallURL: server.URL, Logger: nopLogger{}})
	require.NoError(t, err)
	assert.Error(t, n.OpenLong(context.Background()))
}
