package chatfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{5, 1600 * time.Millisecond},
		{6, 2 * time.Second},
		{40, 2 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(100*time.Millisecond, 2*time.Second, tt.attempt), "attempt %d", tt.attempt)
	}
	assert.Equal(t, 500*time.Millisecond, Backoff(0, 0, 1))
	assert.Equal(t, 30*time.Second, Backoff(0, 0, 100))
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, `{"error":{"code":"unauthorized"}}`, http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/chats/5/messages" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]model.Message{msg(1, 5, 1), msg(2, 5, 2)})
	}))
	defer srv.Close()

	f := &HTTPFetcher{BaseURL: srv.URL + "/", Token: StaticToken("tok")}
	got, err := f.Fetch(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, ids(got))
	assert.Equal(t, uint64(5), got[0].ChatID)

	_, err = (&HTTPFetcher{BaseURL: srv.URL, Token: StaticToken("bad")}).Fetch(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

// flakyStream drops the first connection right after one event and keeps later ones open.
func flakyStream(t *testing.T, conns *int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" || r.URL.Path != "/api/chats/9/stream" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := atomic.AddInt32(conns, 1)
		ev := realtime.Event{Type: realtime.EventInsert, Table: realtime.TableMessages, Record: msg(uint64(n), 9, int(n))}
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
		if n == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func next(t *testing.T, ch <-chan Delivery) Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "deliveries closed early")
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return Delivery{}
}

func TestWSSubscriber_ReconnectsAfterDrop(t *testing.T) {
	var conns int32
	srv := flakyStream(t, &conns)
	s := &WSSubscriber{
		BaseURL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:     StaticToken("tok"),
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  50 * time.Millisecond,
	}

	sub, err := s.Subscribe(context.Background(), 9)
	require.NoError(t, err)

	first := next(t, sub.Deliveries())
	require.NotNil(t, first.Event)
	assert.Equal(t, uint64(1), first.Event.Record.ID)

	reconnected := next(t, sub.Deliveries())
	assert.True(t, reconnected.Reconnected)

	second := next(t, sub.Deliveries())
	require.NotNil(t, second.Event)
	assert.Equal(t, uint64(2), second.Event.Record.ID)

	require.NoError(t, sub.Close())
	_, open := <-sub.Deliveries()
	assert.False(t, open, "deliveries close with the subscription")
	require.NoError(t, sub.Close())
}

func TestWSSubscriber_FirstDialFails(t *testing.T) {
	var conns int32
	srv := flakyStream(t, &conns)
	s := &WSSubscriber{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"), Token: StaticToken("wrong")}
	_, err := s.Subscribe(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestFeed_OverWebsocket(t *testing.T) {
	var conns int32
	srv := flakyStream(t, &conns)
	s := &WSSubscriber{
		BaseURL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:     StaticToken("tok"),
		BaseDelay: 10 * time.Millisecond,
	}
	fetcher := &fakeFetcher{msgs: []model.Message{msg(1, 9, 1)}}
	f := New(9, s, fetcher)
	require.NoError(t, f.Open(context.Background()))

	require.Eventually(t, func() bool { return len(f.Messages()) == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []uint64{1, 2}, ids(f.Messages()))
	assert.GreaterOrEqual(t, fetcher.callCount(), 2, "reconnect triggers a refetch")

	require.NoError(t, f.Close())
	assert.Equal(t, Closed, f.State())
}
