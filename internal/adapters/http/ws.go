package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"academy/internal/application/player"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 16
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	hub       *wsHub
	session   *player.Session
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

// wsEnvelope is one update for a session's watchers. A nil payload
// disconnects them instead.
type wsEnvelope struct {
	sessionID string
	payload   []byte
}

// wsHub fans session snapshots out to the dialogs watching them. Every
// client is subscribed to exactly one playback session.
type wsHub struct {
	clients    map[string]map[*wsClient]bool
	publish    chan wsEnvelope
	register   chan *wsClient
	unregister chan *wsClient
	count      chan chan int
	done       chan struct{}
	closeOnce  sync.Once
}

func newWSHub() *wsHub {
	h := &wsHub{
		clients:    make(map[string]map[*wsClient]bool),
		publish:    make(chan wsEnvelope, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *wsHub) run() {
	for {
		select {
		case <-h.done:
			for _, set := range h.clients {
				for c := range set {
					_ = c.conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(2*time.Second),
					)
					close(c.send)
				}
			}
			h.clients = nil
			slog.Debug("ws_hub_stopped")
			return
		case c := <-h.register:
			set := h.clients[c.sessionID]
			if set == nil {
				set = make(map[*wsClient]bool)
				h.clients[c.sessionID] = set
			}
			set[c] = true
			slog.Debug("ws_client_connected", "session_id", c.sessionID, "watchers", len(set))
		case c := <-h.unregister:
			h.remove(c)
		case env := <-h.publish:
			for c := range h.clients[env.sessionID] {
				if env.payload == nil {
					h.remove(c)
					continue
				}
				select {
				case c.send <- env.payload:
				default:
					h.remove(c)
				}
			}
		case reply := <-h.count:
			n := 0
			for _, set := range h.clients {
				n += len(set)
			}
			reply <- n
		}
	}
}

// remove must run on the hub goroutine.
func (h *wsHub) remove(c *wsClient) {
	set, ok := h.clients[c.sessionID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
	slog.Debug("ws_client_disconnected", "session_id", c.sessionID)
}

// Publish queues snap for every client watching its session. While the hub
// is backed up, in-flight updates are dropped because the next change carries
// full state. Error and idle snapshots have no next change and always wait.
func (h *wsHub) Publish(snap player.Snapshot) {
	payload, err := encodeWSMessage("state", newPlaybackView(snap))
	if err != nil {
		slog.Error("ws_marshal_failed", "error", err)
		return
	}
	env := wsEnvelope{sessionID: snap.SessionID, payload: payload}
	if snap.State == player.StateError || snap.State == player.StateIdle {
		select {
		case <-h.done:
		case h.publish <- env:
		}
		return
	}
	select {
	case <-h.done:
	case h.publish <- env:
	default:
		slog.Warn("ws_publish_dropped", "session_id", snap.SessionID)
	}
}

// CloseSession disconnects every client watching sessionID once the
// updates already queued for it are delivered.
func (h *wsHub) CloseSession(sessionID string) {
	select {
	case <-h.done:
	case h.publish <- wsEnvelope{sessionID: sessionID}:
	}
}

// Close stops the hub and disconnects all clients. Safe to call twice.
func (h *wsHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *wsHub) clientCount() int {
	reply := make(chan int, 1)
	select {
	case <-h.done:
		return 0
	case h.count <- reply:
		return <-reply
	}
}

func encodeWSMessage(msgType string, data any) ([]byte, error) {
	return json.Marshal(wsMessage{Type: msgType, Data: data})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Queued messages drain before the channel reports closed.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "playback session closed"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks until the client goes away. Clients only send pongs, and
// each one counts as activity on the watched session.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		c.session.Touch()
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// GET /api/playback/{id}/ws
func handlePlaybackWS(w http.ResponseWriter, r *http.Request) {
	s, err := players.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		slog.Debug("ws_upgrade_failed", "error", err)
		return
	}

	s.Touch()
	c := &wsClient{hub: hub, session: s, sessionID: s.ID(), conn: conn, send: make(chan []byte, wsSendBuffer)}
	if first, err := encodeWSMessage("state", newPlaybackView(s.Snapshot())); err == nil {
		c.send <- first
	}
	select {
	case hub.register <- c:
	case <-hub.done:
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}
