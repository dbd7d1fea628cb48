package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "tester", r.Header.Get("User-Agent"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["symbol"]})
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("tester"))
	var out map[string]string
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, map[string]string{"symbol": "SPY"}, &out))
	assert.Equal(t, "SPY", out["echo"])
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, map[string]string{}, nil))
}

func TestClientStatusError(t *testing.T) {
	tests := []struct {
		code      int
		temporary bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tt.code)
		}))
		err := NewClient().PostJSON(context.Background(), srv.URL, nil, nil)
		srv.Close()

		var se *StatusError
		require.True(t, errors.As(err, &se), "status %d", tt.code)
		assert.Equal(t, tt.code, se.Code)
		assert.Equal(t, "nope", se.Body)
		assert.Equal(t, tt.temporary, se.Temporary())
	}
}
