package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "spectrum/internal/log"

	"github.com/gorilla/websocket"
)

// Frame is the JSON message broadcast to WebSocket clients.
type Frame struct {
	Seq  uint64    `json:"seq"`
	Bins []float64 `json:"bins"`
}

const (
	broadcastQueue = 8 // frames buffered ahead of slow clients
	writeTimeout   = time.Second
)

// WebSocketSink broadcasts each spectrum as a JSON Frame to every connected
// client. Send never blocks: when the broadcast queue is full the frame is
// dropped and counted.
type WebSocketSink struct {
	path     string
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	mu        sync.Mutex // guards closed and sends on broadcast
	closed    bool
	broadcast chan Frame
	wg        sync.WaitGroup

	seq     uint64
	dropped atomic.Uint64
	server  *http.Server
}

// NewWebSocketSink creates a sink that accepts clients on path and starts
// its broadcast goroutine. Call Serve to listen, or mount Handler on an
// existing server.
func NewWebSocketSink(path string) *WebSocketSink {
	if path == "" {
		path = "/"
	}
	wss := &WebSocketSink{
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		mux:       http.NewServeMux(),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Frame, broadcastQueue),
	}
	wss.mux.HandleFunc(path, wss.handleWebSocket)

	wss.wg.Add(1)
	go wss.handleBroadcasts()
	return wss
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (wss *WebSocketSink) Handler() http.Handler { return wss.mux }

// Serve listens on addr and serves clients in the background. Bind errors
// are returned synchronously.
func (wss *WebSocketSink) Serve(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           wss.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	wss.mu.Lock()
	wss.server = server
	wss.mu.Unlock()

	go func() {
		applog.Infof("WebSocketSink: Serving spectra on ws://%s%s", ln.Addr(), wss.path)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketSink: Server error: %v", err)
		}
	}()
	return ln.Addr(), nil
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wss *WebSocketSink) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wss.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketSink: Upgrade error: %v", err)
		return
	}

	wss.clientsMu.Lock()
	wss.clients[conn] = true
	total := len(wss.clients)
	wss.clientsMu.Unlock()
	applog.Infof("WebSocketSink: Client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wss.removeClient(conn)
	}()
}

func (wss *WebSocketSink) removeClient(conn *websocket.Conn) {
	wss.clientsMu.Lock()
	_, ok := wss.clients[conn]
	delete(wss.clients, conn)
	total := len(wss.clients)
	wss.clientsMu.Unlock()

	if ok {
		conn.Close()
		applog.Infof("WebSocketSink: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued frames to all connected clients
func (wss *WebSocketSink) handleBroadcasts() {
	defer wss.wg.Done()

	for frame := range wss.broadcast {
		wss.clientsMu.Lock()
		for client := range wss.clients {
			client.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := client.WriteJSON(frame); err != nil {
				applog.Warnf("WebSocketSink: Error sending to client: %v", err)
				client.Close()
				delete(wss.clients, client)
			}
		}
		wss.clientsMu.Unlock()
	}
}

// Clients returns the number of connected clients.
func (wss *WebSocketSink) Clients() int {
	wss.clientsMu.Lock()
	defer wss.clientsMu.Unlock()
	return len(wss.clients)
}

// Dropped returns how many frames were discarded because the queue was full.
func (wss *WebSocketSink) Dropped() uint64 { return wss.dropped.Load() }

// Send queues a copy of spectrum for broadcast. Frames are numbered even
// when nobody is connected so clients can detect gaps.
func (wss *WebSocketSink) Send(spectrum []float64) error {
	wss.mu.Lock()
	defer wss.mu.Unlock()

	if wss.closed {
		return errors.New("websocket sink is closed")
	}
	wss.seq++

	frame := Frame{Seq: wss.seq, Bins: append([]float64(nil), spectrum...)}
	select {
	case wss.broadcast <- frame:
	default:
		wss.dropped.Add(1)
	}
	return nil
}

// Close stops broadcasting, disconnects all clients and shuts the server down.
func (wss *WebSocketSink) Close() error {
	wss.mu.Lock()
	if wss.closed {
		wss.mu.Unlock()
		return nil
	}
	wss.closed = true
	close(wss.broadcast)
	server := wss.server
	wss.mu.Unlock()

	wss.wg.Wait()

	wss.clientsMu.Lock()
	for client := range wss.clients {
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		client.Close()
	}
	wss.clients = make(map[*websocket.Conn]bool)
	wss.clientsMu.Unlock()

	applog.Debugf("WebSocketSink: Closed (%d frames sent, %d dropped)", wss.seq, wss.dropped.Load())

	if server != nil {
		return server.Close()
	}
	return nil
}

// Ensure WebSocketSink satisfies the interface
var _ Sink = (*WebSocketSink)(nil)
