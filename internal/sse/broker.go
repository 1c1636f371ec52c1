// Package sse implements a Server-Sent Events broker that fans launcher
// change notifications out to connected clients.
package sse

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/launchgrid/internal/launcher"
)

// Event names written on the stream.
const (
	EventLayout  = "layout.updated"
	EventFolders = "folders.updated"
	EventCatalog = "catalog.updated"
	EventRefresh = "grid.refresh"
)

var eventNames = map[launcher.ChangeKind]string{
	launcher.ChangeLayout:  EventLayout,
	launcher.ChangeFolders: EventFolders,
	launcher.ChangeCatalog: EventCatalog,
}

// Broker fans launcher changes out to SSE clients.
//
// A single loop goroutine owns the client set, the change sequence and the
// refresh throttle; public methods talk to it over channels.
type Broker struct {
	refreshMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	changeCh      chan launcher.ChangeKind
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Verify *Broker satisfies launcher.Notifier at compile time.
var _ launcher.Notifier = (*Broker)(nil)

// NewBroker creates a broker that emits at most one grid.refresh per
// refreshThrottle.
func NewBroker(refreshThrottle time.Duration) *Broker {
	if refreshThrottle <= 0 {
		refreshThrottle = 500 * time.Millisecond
	}

	b := &Broker{
		refreshMin:    refreshThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		changeCh:      make(chan launcher.ChangeKind, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// frame renders one SSE message. seq is carried as the event id so a
// client can tell whether it missed changes while reconnecting.
func frame(event string, seq uint64, kind launcher.ChangeKind) []byte {
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: {\"kind\":%q,\"seq\":%d}\n\n", seq, event, string(kind), seq)
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq         uint64
		lastRefresh time.Time
	)

	broadcast := func(msg []byte) {
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case kind := <-b.changeCh:
			name, ok := eventNames[kind]
			if !ok {
				continue
			}
			seq++
			broadcast(frame(name, seq, kind))

			if now := time.Now(); now.Sub(lastRefresh) >= b.refreshMin {
				lastRefresh = now
				broadcast(frame(EventRefresh, seq, kind))
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Notify queues a launcher change for broadcast. Unknown kinds are dropped.
func (b *Broker) Notify(kind launcher.ChangeKind) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- kind:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: 2000\n\n"))
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
