package lnurlauth

import (
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Event names pushed to waiting browsers.
const (
	EventLoggedIn = "loggedIn"
	EventError    = "error"
)

// pushMessage is the wire format of a hub notification.
type pushMessage struct {
	Event string `json:"event"`
}

// Hub tracks which websocket connection waits for which challenge hash. One
// connection waits for at most one hash; a new subscription on the same
// connection replaces the previous one.
type Hub struct {
	mu     sync.Mutex
	byHash map[string]*websocket.Conn
	byConn map[*websocket.Conn]string
}

// NewHub constructs a Hub.
func NewHub() *Hub {
	return &Hub{
		byHash: map[string]*websocket.Conn{},
		byConn: map[*websocket.Conn]string{},
	}
}

// Subscribe registers conn as the waiter for the given hash.
func (h *Hub) Subscribe(hash string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if previous, ok := h.byConn[conn]; ok {
		delete(h.byHash, previous)
	}
	h.byHash[hash] = conn
	h.byConn[conn] = hash
}

// Unsubscribe drops the subscription of a disconnected connection.
func (h *Hub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hash, ok := h.byConn[conn]
	if !ok {
		return
	}
	delete(h.byConn, conn)
	if h.byHash[hash] == conn {
		delete(h.byHash, hash)
	}
}

// Notify pushes an event to the waiter of the given hash, if any. It reports
// whether a waiter was subscribed; a dead connection is dropped without
// retrying. The mutex is held across the write: the websocket permits only
// one concurrent writer per connection.
func (h *Hub) Notify(hash string, event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.byHash[hash]
	if !ok {
		return false
	}
	if errWrite := conn.WriteJSON(pushMessage{Event: event}); errWrite != nil {
		log.WithError(errWrite).Debug("login push failed, dropping subscription")
		delete(h.byConn, conn)
		delete(h.byHash, hash)
		return false
	}
	return true
}
