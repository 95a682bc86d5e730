package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/logic/booth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = maxEventBytes
)

// The kiosk page is served by this process on a local network.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS handles GET /ws: the client sends booth events as JSON text
// messages and receives every status event, like /status/stream.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	if h.Booth == nil {
		http.Error(w, "booth not configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("web: websocket upgrade: %v", err)
		return
	}

	events, unsub := h.Broadcaster.Subscribe()
	replies := make(chan string, 8)
	done := make(chan struct{})
	go h.writePump(conn, events, replies, done)

	h.readPump(conn, replies)
	close(done)
	unsub()
}

// readPump decodes events until the connection closes. Rejected events get
// an error reply on this connection only.
func (h *Handlers) readPump(conn *websocket.Conn, replies chan<- string) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := h.ctx
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debug.Verbose("web: websocket read: %v", err)
			}
			return
		}

		var e booth.Event
		if err := json.Unmarshal(message, &e); err != nil {
			reply(replies, "invalid JSON")
			continue
		}
		if _, err := h.submit(ctx, e); err != nil && !booth.Silent(err) {
			reply(replies, err.Error())
		}
	}
}

func reply(replies chan<- string, msg string) {
	data, err := json.Marshal(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Kind:  KindError,
		Level: "error",
		Msg:   msg,
	})
	if err != nil {
		return
	}
	select {
	case replies <- string(data):
	default:
	}
}

func (h *Handlers) writePump(conn *websocket.Conn, events <-chan string, replies <-chan string, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(msg string) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, []byte(msg)) == nil
	}

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(msg) {
				return
			}
		case msg := <-replies:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
