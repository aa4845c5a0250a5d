package httpc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON(t *testing.T) {
	t.Run("posts body and decodes response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"query":"q"}`, string(body))
			_, _ = w.Write([]byte(`{"context":"found"}`))
		}))
		defer srv.Close()

		var out struct {
			Context string `json:"context"`
		}
		err := DoJSON(context.Background(), nil, Request{
			Method: http.MethodPost,
			URL:    srv.URL,
			Header: http.Header{"Authorization": {"Bearer t"}},
			Body:   map[string]string{"query": "q"},
		}, &out)
		require.NoError(t, err)
		assert.Equal(t, "found", out.Context)
	})

	t.Run("non-2xx is a StatusError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		err := DoJSON(context.Background(), NewClient(DefaultTimeout), Request{Method: http.MethodGet, URL: srv.URL}, nil)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.Contains(t, statusErr.Body, "nope")
	})

	t.Run("empty body with nil out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		require.NoError(t, DoJSON(context.Background(), nil, Request{Method: http.MethodPost, URL: srv.URL}, nil))
	})
}
