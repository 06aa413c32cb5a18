package observer

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout   = 5 * time.Second
	clientBuffer   = 64
	handshakeLimit = 10 * time.Second
)

// Broadcaster pushes events to websocket dashboard clients. Each client
// gets a bounded send queue; when it fills, events for that client are
// dropped, keeping the at-most-once best-effort contract.
type Broadcaster struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan Event
}

// NewBroadcaster builds a broadcaster ready to accept websocket upgrades.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeLimit,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		log:     log.With().Str("component", "ws").Logger(),
		clients: make(map[*wsClient]struct{}),
	}
}

// Notify implements Observer: the event is queued to every connected
// client, dropping per-client on a full queue.
func (b *Broadcaster) Notify(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- event:
		default:
			// Slow consumer; this event is lost for this client.
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &wsClient{conn: conn, send: make(chan Event, clientBuffer)}

	b.mu.Lock()
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()
	b.log.Info().Int("clients", count).Msg("dashboard client connected")

	go b.writeLoop(client)
	b.readLoop(client)
}

func (b *Broadcaster) writeLoop(client *wsClient) {
	for event := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteJSON(event); err != nil {
			b.drop(client)
			return
		}
	}
}

// readLoop drains (and discards) inbound frames so pings are answered and
// closes are noticed.
func (b *Broadcaster) readLoop(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			b.drop(client)
			return
		}
	}
}

func (b *Broadcaster) drop(client *wsClient) {
	b.mu.Lock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.send)
	}
	b.mu.Unlock()
	_ = client.conn.Close()
}

// Serve exposes the broadcaster on addr under /ws in the background and
// returns the server so the caller can shut it down.
func Serve(addr string, b *Broadcaster) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", b)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
