// Package sse implements a Server-Sent Events broker for live build updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Build event kinds.
const (
	KindBuilt   = "built"
	KindSkipped = "skipped"
	KindFailed  = "failed"
)

// BuildEvent describes the outcome of one language (or of a whole failed
// version build).
type BuildEvent struct {
	Kind    string `json:"-"`
	Version string `json:"version"`
	Lang    string `json:"lang,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + versions throttle timestamp). Public methods communicate with this
// loop through channels, so no mutexes are required.
type Broker struct {
	versionsMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	buildEventCh  chan BuildEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given versions.updated
// throttle interval.
func NewBroker(versionsThrottle time.Duration) *Broker {
	if versionsThrottle <= 0 {
		versionsThrottle = 2 * time.Second
	}

	b := &Broker{
		versionsMin:   versionsThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		buildEventCh:  make(chan BuildEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// encode formats an event as an SSE frame.
func encode(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, false
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), true
}

// latestKey identifies the bundle a build event is about; a failed version
// build has no language.
func latestKey(ev BuildEvent) string {
	return ev.Version + "/" + ev.Lang
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastVersions time.Time
	// Latest frame per bundle, replayed to new subscribers.
	latest := make(map[string][]byte)

	send := func(ch chan []byte, raw []byte) {
		select {
		case ch <- raw:
		default:
			// Client buffer full; skip to avoid blocking broker loop.
		}
	}
	broadcast := func(event Event) []byte {
		raw, ok := encode(event)
		if !ok {
			return nil
		}
		for ch := range clients {
			send(ch, raw)
		}
		return raw
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
			keys := make([]string, 0, len(latest))
			for k := range latest {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				send(ch, latest[k])
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.buildEventCh:
			var typ string
			switch ev.Kind {
			case KindBuilt:
				typ = "bundle.built"
			case KindSkipped:
				typ = "bundle.skipped"
			case KindFailed:
				typ = "build.failed"
			default:
				continue
			}
			if raw := broadcast(Event{Type: typ, Data: ev}); raw != nil {
				latest[latestKey(ev)] = raw
			}
			if ev.Kind == KindFailed {
				continue
			}
			// A bundle of the version was produced, so an earlier failure is stale.
			delete(latest, ev.Version+"/")

			now := time.Now()
			if now.Sub(lastVersions) >= b.versionsMin {
				lastVersions = now
				broadcast(Event{Type: "versions.updated", Data: map[string]string{"version": ev.Version}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. The latest outcome of
// every bundle seen so far is queued on the channel first.
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishBuildEvent publishes a build outcome. Built and skipped bundles are
// followed by a throttled versions.updated event.
func (b *Broker) PublishBuildEvent(ev BuildEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.buildEventCh <- ev:
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
