package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSessionContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/s-1/context", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"success": true,
			"metadata": {"job_title": "Backend Engineer", "company_name": "Acme", "stt_model": "flux-general-en",
				"stt_config": {"endpointing": 300, "keywords": ["Go"]}},
			"interview": {"interview_type": "technical", "difficulty_level": "senior", "duration_minutes": 20}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", WithToken("tok"))
	resp, err := c.SessionContext(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", resp.Metadata.CompanyName)
	assert.Equal(t, 20, resp.Interview.DurationMinutes)
	require.NotNil(t, resp.Metadata.STTConfig)
	assert.Equal(t, []string{"Go"}, resp.Metadata.STTConfig.Keywords)
}

func TestClientErrors(t *testing.T) {
	t.Run("success false", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).SessionContext(context.Background(), "s")
		assert.ErrorIs(t, err, ErrUnsuccessful)
	})

	t.Run("status error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).SessionContext(context.Background(), "s")
		assert.True(t, IsStatus(err, http.StatusNotFound))
	})

	t.Run("empty session id", func(t *testing.T) {
		c := NewClient("http://unused")
		assert.ErrorIs(t, c.EndSession(context.Background(), "", "done"), ErrEmptySessionID)
	})
}

func TestClientPosts(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string]map[string]any{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = sonic.Unmarshal(data, &m)
		mu.Lock()
		bodies[r.URL.Path] = m
		mu.Unlock()
		if r.URL.Path == "/agent/context" {
			_, _ = w.Write([]byte(`{"context":"Team uses Go"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	text, err := c.AgentContext(ctx, "stack")
	require.NoError(t, err)
	assert.Equal(t, "Team uses Go", text)

	require.NoError(t, c.LogTranscript(ctx, "s1", LogEntry{Speaker: "agent", Message: "hi"}))
	require.NoError(t, c.UpdateProgress(ctx, "s1", Progress{Action: "question", Payload: map[string]any{"status": "asked"}}))
	require.NoError(t, c.EndSession(ctx, "s1", "completed"))

	assert.Equal(t, "stack", bodies["/agent/context"]["query"])
	assert.Equal(t, "agent", bodies["/sessions/s1/log"]["speaker"])
	assert.Equal(t, "question", bodies["/sessions/s1/progress"]["action"])
	assert.Equal(t, "completed", bodies["/sessions/s1/end"]["reason"])
}

func TestNotifierOrdered(t *testing.T) {
	n := NewNotifier()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, n.Enqueue("s1", "log", func(ctx context.Context) error {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			return nil
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Close(ctx))

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestNotifierFailuresAreSwallowed(t *testing.T) {
	var failures atomic.Int32
	n := NewNotifier(WithFailureHook(func(op string, err error) {
		failures.Add(1)
	}))

	require.NoError(t, n.Go("end", func(ctx context.Context) error {
		return errors.New("backend down")
	}))
	require.NoError(t, n.Enqueue("s1", "log", func(ctx context.Context) error {
		return errors.New("backend down")
	}))

	require.NoError(t, n.Close(context.Background()))
	assert.Equal(t, int32(2), failures.Load())

	assert.ErrorIs(t, n.Go("late", func(ctx context.Context) error { return nil }), ErrNotifierClosed)
}

func TestNotifierTaskTimeout(t *testing.T) {
	n := NewNotifier(WithTaskTimeout(20 * time.Millisecond))

	done := make(chan error, 1)
	require.NoError(t, n.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task was not bounded by timeout")
	}
	require.NoError(t, n.Close(context.Background()))
}

func TestNotifierRelease(t *testing.T) {
	n := NewNotifier()
	ran := make(chan struct{})
	require.NoError(t, n.Enqueue("s1", "log", func(ctx context.Context) error {
		close(ran)
		return nil
	}))
	assert.Equal(t, 1, n.Pending())
	n.Release("s1")
	assert.Equal(t, 0, n.Pending())
	<-ran
	require.NoError(t, n.Close(context.Background()))
}

func TestNotifierEnqueueAfterRelease(t *testing.T) {
	n := NewNotifier()
	require.NoError(t, n.Enqueue("b1", "log", func(ctx context.Context) error { return nil }))
	n.Release("b1")

	var ran atomic.Bool
	err := n.Enqueue("b1", "update_progress", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, ErrReleased)
	assert.Equal(t, 0, n.Pending())

	// Other keys are unaffected.
	require.NoError(t, n.Enqueue("b2", "log", func(ctx context.Context) error { return nil }))
	assert.Equal(t, 1, n.Pending())

	require.NoError(t, n.Close(context.Background()))
	assert.False(t, ran.Load())
}

func TestNotifierForgetsOldReleasedKeys(t *testing.T) {
	n := NewNotifier()
	for i := 0; i <= releasedKeep; i++ {
		n.Release(fmt.Sprintf("b%d", i))
	}
	assert.Len(t, n.released, releasedKeep)

	// b0 was the oldest and is accepted again; the newest is still refused.
	require.NoError(t, n.Enqueue("b0", "log", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, n.Enqueue(fmt.Sprintf("b%d", releasedKeep), "log", func(ctx context.Context) error { return nil }), ErrReleased)
	require.NoError(t, n.Close(context.Background()))
}
