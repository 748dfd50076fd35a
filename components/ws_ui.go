package components

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/creastat/infra/telemetry"
	"github.com/gorilla/websocket"

	"github.com/creastat/assistant/core"
	"github.com/creastat/assistant/protocol"
)

// WebSocketUIConfig holds websocket UI configuration
type WebSocketUIConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8765".
	Addr string

	// Path is the websocket endpoint path (default "/ws").
	Path string

	// WriteTimeout bounds a single client write (default 5s).
	WriteTimeout time.Duration

	Logger telemetry.Logger
}

// WebSocketUI bridges the bus to browser clients. Output events are
// converted to wire messages and broadcast to every connected client;
// client input messages are converted back to events and published.
type WebSocketUI struct {
	config   WebSocketUIConfig
	logger   telemetry.Logger
	pub      core.Publisher
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	wg      sync.WaitGroup
}

// wsClient serializes writes to one connection
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocketUI creates a websocket UI component
func NewWebSocketUI(config WebSocketUIConfig) *WebSocketUI {
	if config.Path == "" {
		config.Path = "/ws"
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	return &WebSocketUI{
		config:  config,
		logger:  config.Logger.WithModule("ws_ui"),
		clients: make(map[*wsClient]struct{}),
	}
}

// Name returns the component name
func (w *WebSocketUI) Name() string {
	return "ws_ui"
}

// Role returns the component role
func (w *WebSocketUI) Role() core.Role {
	return core.RoleOutput
}

// Dependencies returns the components that must start first
func (w *WebSocketUI) Dependencies() []string {
	return nil
}

// Subscriptions returns the event types this component handles
func (w *WebSocketUI) Subscriptions() []core.EventType {
	return []core.EventType{
		core.EventNLPResponse,
		core.EventVisionResponse,
		core.EventDisplayText,
		core.EventUIUpdate,
		core.EventSystemStatus,
		core.EventActionResult,
		core.EventError,
	}
}

// SetPublisher stores the bus handle for client input
func (w *WebSocketUI) SetPublisher(pub core.Publisher) {
	w.pub = pub
}

// Initialize binds the listen address and starts serving connections
func (w *WebSocketUI) Initialize(_ context.Context) error {
	if w.config.Addr == "" {
		return fmt.Errorf("ws_ui: no listen address configured")
	}
	if w.pub == nil {
		return fmt.Errorf("ws_ui: no publisher configured")
	}

	listener, err := net.Listen("tcp", w.config.Addr)
	if err != nil {
		return fmt.Errorf("ws_ui: listen on %s: %w", w.config.Addr, err)
	}
	w.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(w.config.Path, w.handleUpgrade)
	w.server = &http.Server{Handler: mux}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("server stopped", telemetry.Err(err))
		}
	}()

	w.logger.Info("websocket UI listening",
		telemetry.String("addr", listener.Addr().String()),
		telemetry.String("path", w.config.Path))
	return nil
}

// Addr returns the bound listen address, useful when Addr was ":0"
func (w *WebSocketUI) Addr() string {
	if w.listener == nil {
		return ""
	}
	return w.listener.Addr().String()
}

func (w *WebSocketUI) handleUpgrade(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("upgrade failed", telemetry.Err(err))
		return
	}

	client := &wsClient{conn: conn}
	w.mu.Lock()
	w.clients[client] = struct{}{}
	clientCount := len(w.clients)
	w.mu.Unlock()

	w.logger.Info("client connected",
		telemetry.String("remote", conn.RemoteAddr().String()),
		telemetry.Int("clients", clientCount))

	w.wg.Add(1)
	go w.readLoop(client)
}

// readLoop publishes client input messages as events until the
// connection drops.
func (w *WebSocketUI) readLoop(client *wsClient) {
	defer w.wg.Done()
	defer w.dropClient(client)

	for {
		var msg protocol.InputMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Warn("client read failed", telemetry.Err(err))
			}
			return
		}

		ev, err := protocol.MessageToEvent(msg, w.Name())
		if err != nil {
			w.logger.Warn("invalid client message",
				telemetry.String("type", string(msg.Type)),
				telemetry.Err(err))
			continue
		}

		if _, err := w.pub.Publish(ev); err != nil {
			w.logger.Error("client input publish failed", telemetry.Err(err))
			return
		}
		w.logger.Debug("client input published",
			telemetry.String("event_type", string(ev.Type)),
			telemetry.String("event_id", ev.ID))
	}
}

func (w *WebSocketUI) dropClient(client *wsClient) {
	w.mu.Lock()
	delete(w.clients, client)
	w.mu.Unlock()
	_ = client.conn.Close()
}

// HandleEvent converts the event to a wire message and broadcasts it.
// Clients whose write fails are dropped; broadcast itself never fails
// the handler.
func (w *WebSocketUI) HandleEvent(_ context.Context, ev core.Event) (*core.Event, error) {
	msg := protocol.EventToMessage(ev)
	if msg == nil {
		return nil, nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("ws_ui: marshal message: %w", err)
	}

	w.mu.Lock()
	clients := make([]*wsClient, 0, len(w.clients))
	for client := range w.clients {
		clients = append(clients, client)
	}
	w.mu.Unlock()

	for _, client := range clients {
		client.mu.Lock()
		_ = client.conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			w.logger.Warn("client write failed, dropping client", telemetry.Err(err))
			w.dropClient(client)
		}
	}
	return nil, nil
}

// Shutdown closes the server and every client connection.
func (w *WebSocketUI) Shutdown(ctx context.Context) error {
	if w.server == nil {
		return nil
	}

	err := w.server.Shutdown(ctx)

	w.mu.Lock()
	for client := range w.clients {
		_ = client.conn.Close()
	}
	w.clients = make(map[*wsClient]struct{})
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.logger.Info("websocket UI stopped")
	return err
}

// Compile-time interface checks.
var (
	_ core.Component      = (*WebSocketUI)(nil)
	_ core.PublisherAware = (*WebSocketUI)(nil)
)
