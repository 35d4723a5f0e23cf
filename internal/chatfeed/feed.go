// Package chatfeed keeps a client-side, ordered view of one chat's messages in
// sync with the server: a bulk fetch seeds the log and pushed inserts extend it.
package chatfeed

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/realtime"
)

type State int

const (
	Loading State = iota
	Live
	Closed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Closed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrClosed = errors.New("chatfeed: feed is closed")
	ErrOpened = errors.New("chatfeed: feed already opened")
)

// Delivery is one item from the push channel: either an event, or a marker that
// the channel reconnected and events may have been missed.
type Delivery struct {
	Event       *realtime.Event
	Reconnected bool
}

type Subscription interface {
	Deliveries() <-chan Delivery
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, chatID uint64) (Subscription, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, chatID uint64) ([]model.Message, error)
}

type Option func(*Feed)

// WithOnAppend registers the scroll-to-latest hook, called once per appended
// message on the delivery goroutine. The hook may call Close.
func WithOnAppend(fn func(model.Message)) Option {
	return func(f *Feed) { f.onAppend = fn }
}

type Feed struct {
	chatID   uint64
	sub      Subscriber
	fetcher  Fetcher
	onAppend func(model.Message)

	mu           sync.Mutex
	state        State
	opening      bool
	log          []model.Message
	seen         map[uint64]struct{}
	subscription Subscription
	cancel       context.CancelFunc
	done         chan struct{}
	closeOnce    sync.Once
	inHook       atomic.Bool
}

func New(chatID uint64, sub Subscriber, fetcher Fetcher, opts ...Option) *Feed {
	f := &Feed{
		chatID:  chatID,
		sub:     sub,
		fetcher: fetcher,
		state:   Loading,
		seen:    map[uint64]struct{}{},
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Open subscribes first so nothing inserted during the fetch is lost, then seeds
// the log with the fetched messages in timestamp order and goes Live.
func (f *Feed) Open(ctx context.Context) error {
	f.mu.Lock()
	switch {
	case f.state == Closed:
		f.mu.Unlock()
		return ErrClosed
	case f.state != Loading || f.opening:
		f.mu.Unlock()
		return ErrOpened
	}
	f.opening = true
	f.mu.Unlock()

	subscription, err := f.sub.Subscribe(ctx, f.chatID)
	if err != nil {
		f.markClosed()
		return err
	}
	msgs, err := f.fetcher.Fetch(ctx, f.chatID)
	if err != nil {
		_ = subscription.Close()
		f.markClosed()
		return err
	}
	sortByTimestamp(msgs)

	runCtx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	if f.state == Closed {
		f.mu.Unlock()
		cancel()
		_ = subscription.Close()
		return ErrClosed
	}
	for _, m := range msgs {
		f.appendLocked(m)
	}
	f.subscription = subscription
	f.cancel = cancel
	f.state = Live
	f.mu.Unlock()

	go f.consume(runCtx, subscription)
	return nil
}

func (f *Feed) markClosed() {
	f.mu.Lock()
	f.state = Closed
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *Feed) consume(ctx context.Context, subscription Subscription) {
	defer f.closeOnce.Do(func() { close(f.done) })
	deliveries := subscription.Deliveries()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			switch {
			case d.Reconnected:
				f.resync(ctx)
			case d.Event != nil:
				f.handle(*d.Event)
			}
		}
	}
}

func (f *Feed) handle(ev realtime.Event) {
	if ev.Type != realtime.EventInsert || ev.Table != realtime.TableMessages || ev.Record.ChatID != f.chatID {
		return
	}
	f.append([]model.Message{ev.Record})
}

// resync refetches after a reconnect and appends whatever arrived while the
// channel was down.
func (f *Feed) resync(ctx context.Context) {
	msgs, err := f.fetcher.Fetch(ctx, f.chatID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[chatfeed] resync failed chat=%d err=%v", f.chatID, err)
		}
		return
	}
	sortByTimestamp(msgs)
	f.append(msgs)
}

func (f *Feed) append(msgs []model.Message) {
	var added []model.Message
	f.mu.Lock()
	if f.state != Live {
		f.mu.Unlock()
		return
	}
	for _, m := range msgs {
		if f.appendLocked(m) {
			added = append(added, m)
		}
	}
	f.mu.Unlock()
	if f.onAppend == nil {
		return
	}
	for _, m := range added {
		if f.State() != Live {
			return
		}
		f.inHook.Store(true)
		f.onAppend(m)
		f.inHook.Store(false)
	}
}

// appendLocked adds m unless its id is already in the log.
func (f *Feed) appendLocked(m model.Message) bool {
	if _, dup := f.seen[m.ID]; dup {
		return false
	}
	f.seen[m.ID] = struct{}{}
	f.log = append(f.log, m)
	return true
}

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Messages returns a copy of the current log.
func (f *Feed) Messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Message, len(f.log))
	copy(out, f.log)
	return out
}

// Close releases the push subscription and waits for delivery handling to stop.
// It is safe to call more than once. While the append hook is running Close
// does not wait, since the hook itself may be the caller.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.state == Closed && f.subscription == nil {
		f.mu.Unlock()
		return nil
	}
	f.state = Closed
	subscription, cancel := f.subscription, f.cancel
	f.subscription, f.cancel = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		// never went Live
		f.closeOnce.Do(func() { close(f.done) })
		return nil
	}
	cancel()
	err := subscription.Close()
	if !f.inHook.Load() {
		<-f.done
	}
	return err
}

func sortByTimestamp(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}
