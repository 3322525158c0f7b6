/*
bus.go - Snapshot fan-out to subscribers

PURPOSE:
  The Bus pushes point-in-time copies of the slot collection and the
  booking history to registered subscribers: once immediately after
  subscribing (asynchronously, never inside the Subscribe call), and
  again after every successful transition. Subscribers receive immutable
  snapshots, never references into shared state.

DELIVERY MODEL:
  Each subscriber owns a goroutine draining a capacity-1 queue. A newer
  snapshot replaces an undelivered older one (latest wins) - subscribers
  render current state, they do not replay deltas, so coalescing is
  correct and a slow subscriber cannot stall the others. A panicking
  callback is recovered and only takes down its own delivery loop.

CONNECTION STATUS:
  A failed snapshot read (store unreachable) is reported on the status
  channel as StateOffline, distinct from any booking failure. The next
  successful publish reports StateConnected and resumes snapshots; no
  state is lost because snapshots always reflect the store's current
  contents.

SEE ALSO:
  - engine.go: Calls Publish after each successful toggle
  - api/ws.go: Bridges subscriptions onto WebSocket connections
*/
package parking

import (
	"context"
	"log"
	"sync"
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// ConnectionState describes snapshot-delivery health as seen by the UI.
type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateConnected  ConnectionState = "connected"
	StateOffline    ConnectionState = "offline"
)

// =============================================================================
// BUS - Publish/subscribe over store snapshots
// =============================================================================

// Unsubscribe removes a subscription. Idempotent: calling it twice is a
// no-op, not an error.
type Unsubscribe func()

// Bus fans out snapshots of the slot store and history ledger.
type Bus struct {
	slots  SlotStore
	ledger *Ledger

	mu       sync.Mutex
	nextID   int
	slotSubs map[int]*subscriber[[]Slot]
	histSubs map[int]*subscriber[[]HistoryRecord]
	statSubs map[int]*subscriber[ConnectionState]
	state    ConnectionState
}

// NewBus creates a bus reading snapshots from the given store and ledger.
func NewBus(slots SlotStore, ledger *Ledger) *Bus {
	return &Bus{
		slots:    slots,
		ledger:   ledger,
		slotSubs: make(map[int]*subscriber[[]Slot]),
		histSubs: make(map[int]*subscriber[[]HistoryRecord]),
		statSubs: make(map[int]*subscriber[ConnectionState]),
		state:    StateConnecting,
	}
}

// SubscribeSlots registers a callback for slot snapshots. The current
// snapshot is delivered asynchronously right away.
func (b *Bus) SubscribeSlots(fn func([]Slot)) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := newSubscriber(fn)
	b.slotSubs[id] = sub
	b.mu.Unlock()

	go b.deliverSlots(sub)
	return b.unsubscribeFunc(func() { delete(b.slotSubs, id) }, sub.stop)
}

// SubscribeHistory registers a callback for history snapshots. The
// current snapshot is delivered asynchronously right away.
func (b *Bus) SubscribeHistory(fn func([]HistoryRecord)) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := newSubscriber(fn)
	b.histSubs[id] = sub
	b.mu.Unlock()

	go b.deliverHistory(sub)
	return b.unsubscribeFunc(func() { delete(b.histSubs, id) }, sub.stop)
}

// SubscribeStatus registers a callback for connection-state changes and
// immediately delivers the current state.
func (b *Bus) SubscribeStatus(fn func(ConnectionState)) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := newSubscriber(fn)
	b.statSubs[id] = sub
	state := b.state
	b.mu.Unlock()

	sub.offer(state)
	return b.unsubscribeFunc(func() { delete(b.statSubs, id) }, sub.stop)
}

// Publish reads fresh snapshots and fans them out to every subscriber.
// Called by the engine after each successful transition, and by the
// server once at startup.
func (b *Bus) Publish(ctx context.Context) {
	slots, serr := b.slots.List(ctx)
	history, herr := b.ledger.ListNewestFirst(ctx, 0)
	if serr != nil || herr != nil {
		log.Printf("bus: snapshot read failed (slots: %v, history: %v)", serr, herr)
		b.setState(StateOffline)
		return
	}
	b.setState(StateConnected)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.slotSubs {
		sub.offer(slots)
	}
	for _, sub := range b.histSubs {
		sub.offer(history)
	}
}

func (b *Bus) deliverSlots(sub *subscriber[[]Slot]) {
	slots, err := b.slots.List(context.Background())
	if err != nil {
		log.Printf("bus: initial slot snapshot failed: %v", err)
		b.setState(StateOffline)
		return
	}
	sub.offer(slots)
}

func (b *Bus) deliverHistory(sub *subscriber[[]HistoryRecord]) {
	history, err := b.ledger.ListNewestFirst(context.Background(), 0)
	if err != nil {
		log.Printf("bus: initial history snapshot failed: %v", err)
		b.setState(StateOffline)
		return
	}
	sub.offer(history)
}

func (b *Bus) setState(s ConnectionState) {
	b.mu.Lock()
	changed := b.state != s
	b.state = s
	subs := make([]*subscriber[ConnectionState], 0, len(b.statSubs))
	for _, sub := range b.statSubs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	if !changed {
		return
	}
	for _, sub := range subs {
		sub.offer(s)
	}
}

func (b *Bus) unsubscribeFunc(remove func(), stop func()) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			remove()
			b.mu.Unlock()
			stop()
		})
	}
}

// =============================================================================
// SUBSCRIBER - One delivery loop per registration
// =============================================================================

type subscriber[T any] struct {
	queue chan T
	done  chan struct{}
	once  sync.Once
}

func newSubscriber[T any](fn func(T)) *subscriber[T] {
	s := &subscriber[T]{
		queue: make(chan T, 1),
		done:  make(chan struct{}),
	}
	go s.run(fn)
	return s
}

func (s *subscriber[T]) run(fn func(T)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: subscriber panic: %v", r)
		}
	}()
	for {
		select {
		case <-s.done:
			return
		case v := <-s.queue:
			fn(v)
		}
	}
}

// offer enqueues a snapshot, replacing an undelivered older one.
func (s *subscriber[T]) offer(v T) {
	for {
		select {
		case <-s.done:
			return
		case s.queue <- v:
			return
		default:
			select {
			case <-s.queue: // drop the stale snapshot
			default:
			}
		}
	}
}

func (s *subscriber[T]) stop() {
	s.once.Do(func() { close(s.done) })
}
