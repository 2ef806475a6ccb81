// Package sse implements a Server-Sent Events broker for notebook change events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Event types.
const (
	TypeNoteCreated     = "note.created"
	TypeNoteUpdated     = "note.updated"
	TypeNoteDeleted     = "note.deleted"
	TypeTagsUpdated     = "tags.updated"
	TypeSettingsUpdated = "settings.updated"
	TypeStorageChanged  = "storage.changed"
	TypeReloaded        = "store.reloaded"
)

type noteEventReq struct {
	kind   string
	noteID string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + tags throttle state). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	tagsMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	tagsCh        chan struct{}
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. tags.updated is sent at most once per
// tagsThrottle; an update arriving inside the window is delivered when it ends.
func NewBroker(tagsThrottle time.Duration) *Broker {
	if tagsThrottle <= 0 {
		tagsThrottle = time.Second
	}

	b := &Broker{
		tagsMin:       tagsThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		tagsCh:        make(chan struct{}, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastTags  time.Time
		tagsTimer <-chan time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.noteEventCh:
			switch req.kind {
			case TypeNoteCreated, TypeNoteUpdated, TypeNoteDeleted:
				broadcast(Event{Type: req.kind, Data: map[string]string{"id": req.noteID}})
			}

		case <-b.tagsCh:
			if tagsTimer != nil {
				continue
			}
			if since := time.Since(lastTags); since < b.tagsMin {
				tagsTimer = time.After(b.tagsMin - since)
				continue
			}
			lastTags = time.Now()
			broadcast(Event{Type: TypeTagsUpdated, Data: map[string]string{}})

		case <-tagsTimer:
			tagsTimer = nil
			lastTags = time.Now()
			broadcast(Event{Type: TypeTagsUpdated, Data: map[string]string{}})

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

// PublishNoteEvent publishes a note.* event carrying the note id. Unknown kinds
// are dropped.
func (b *Broker) PublishNoteEvent(kind, noteID string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEventReq{kind: kind, noteID: noteID}:
	case <-b.stopped:
	}
}

// PublishTagsUpdated requests a throttled tags.updated event.
func (b *Broker) PublishTagsUpdated() {
	if b.closed.Load() {
		return
	}
	select {
	case b.tagsCh <- struct{}{}:
	case <-b.stopped:
	}
}

// PublishStorageChanged reports that key was modified outside this process.
func (b *Broker) PublishStorageChanged(key string) {
	b.Publish(Event{Type: TypeStorageChanged, Data: map[string]string{"key": key}})
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
