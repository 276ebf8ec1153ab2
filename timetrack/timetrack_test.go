package timetrack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchBodySuccess(t *testing.T) {
	payload := `[{"routerun":"1","current_route":"A1"}]`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(payload))
	}))
	defer server.Close()

	body, err := NewClient(server.URL, time.Second).FetchBody(context.Background())
	require.NoError(t, err)
	assert.Equal(t, payload, body)
}

func TestFetchBodyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).FetchBody(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestFetchBodyNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, time.Second).FetchBody(context.Background())
	assert.Error(t, err)
}

func TestFetchBodyContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL, time.Second).FetchBody(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientDefaultTimeout(t *testing.T) {
	c := NewClient(DefaultFeedURL, 0)
	assert.Equal(t, defaultTimeout, c.client.Timeout)
	assert.Equal(t, DefaultFeedURL, c.feedURL)
}
