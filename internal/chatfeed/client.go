package chatfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/realtime"
)

// TokenSource returns the current ID token; it is called before every request
// and every reconnect so refreshed tokens are picked up.
type TokenSource func(ctx context.Context) (string, error)

func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// HTTPFetcher loads a chat's messages through the REST API.
type HTTPFetcher struct {
	BaseURL string
	Token   TokenSource
	Client  *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, chatID uint64) ([]model.Message, error) {
	endpoint := fmt.Sprintf("%s/api/chats/%d/messages", strings.TrimRight(f.BaseURL, "/"), chatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.Token != nil {
		token, err := f.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch messages: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var msgs []model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("fetch messages: decode: %w", err)
	}
	return msgs, nil
}

// WSSubscriber opens the chat stream endpoint and keeps it connected,
// redialing with capped exponential backoff when the connection drops.
type WSSubscriber struct {
	// BaseURL is the API origin, e.g. wss://api.example.com.
	BaseURL    string
	Token      TokenSource
	Dialer     *websocket.Dialer
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	BufferSize int
}

func (s *WSSubscriber) streamURL(ctx context.Context, chatID uint64) (string, error) {
	u := fmt.Sprintf("%s/api/chats/%d/stream", strings.TrimRight(s.BaseURL, "/"), chatID)
	if s.Token == nil {
		return u, nil
	}
	token, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return u + "?token=" + url.QueryEscape(token), nil
}

func (s *WSSubscriber) dial(ctx context.Context, chatID uint64) (*websocket.Conn, error) {
	u, err := s.streamURL(ctx, chatID)
	if err != nil {
		return nil, err
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial stream: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	return conn, nil
}

// Subscribe fails fast when the first dial fails; later drops are retried.
func (s *WSSubscriber) Subscribe(ctx context.Context, chatID uint64) (Subscription, error) {
	conn, err := s.dial(ctx, chatID)
	if err != nil {
		return nil, err
	}
	size := s.BufferSize
	if size <= 0 {
		size = 64
	}
	runCtx, cancel := context.WithCancel(context.Background())
	sub := &wsSubscription{
		owner:      s,
		chatID:     chatID,
		conn:       conn,
		deliveries: make(chan Delivery, size),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go sub.run(runCtx)
	return sub, nil
}

// Backoff returns the delay before reconnect attempt n (1-based):
// base * 2^(n-1), capped at maxDelay.
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(delay)
}

type wsSubscription struct {
	owner      *WSSubscriber
	chatID     uint64
	deliveries chan Delivery
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscription) Deliveries() <-chan Delivery {
	return s.deliveries
}

func (s *wsSubscription) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *wsSubscription) swap(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *wsSubscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.deliveries)
	for {
		conn := s.current()
		s.read(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		next, ok := s.reconnect(ctx)
		if !ok {
			return
		}
		s.swap(next)
		if !s.emit(ctx, Delivery{Reconnected: true}) {
			_ = next.Close()
			return
		}
	}
}

func (s *wsSubscription) read(ctx context.Context, conn *websocket.Conn) {
	for {
		var ev realtime.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				log.Printf("[chatfeed] stream dropped chat=%d err=%v", s.chatID, err)
			}
			return
		}
		if !s.emit(ctx, Delivery{Event: &ev}) {
			return
		}
	}
}

func (s *wsSubscription) emit(ctx context.Context, d Delivery) bool {
	select {
	case s.deliveries <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *wsSubscription) reconnect(ctx context.Context) (*websocket.Conn, bool) {
	for attempt := 1; ; attempt++ {
		delay := Backoff(s.owner.BaseDelay, s.owner.MaxDelay, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}
		conn, err := s.owner.dial(ctx, s.chatID)
		if err == nil {
			log.Printf("[chatfeed] reconnected chat=%d attempt=%d", s.chatID, attempt)
			return conn, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		log.Printf("[chatfeed] reconnect failed chat=%d attempt=%d next=%s err=%v",
			s.chatID, attempt, Backoff(s.owner.BaseDelay, s.owner.MaxDelay, attempt+1), err)
	}
}

// Close stops reconnecting, closes the socket and waits for the reader to exit.
func (s *wsSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		if conn := s.current(); conn != nil {
			_ = conn.Close()
		}
	})
	<-s.done
	return nil
}
