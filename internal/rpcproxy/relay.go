package rpcproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/saifu-wallet/gateway/internal/connection"
	"go.uber.org/zap"
)

const (
	maxMessageBytes = 1 << 20
	dialTimeout     = 10 * time.Second
	writeWait       = 10 * time.Second
)

// EndpointSource resolves the node endpoint for a new relay session.
type EndpointSource interface {
	Resolve() (connection.Endpoint, error)
}

// SessionCounter tracks open relay sessions.
type SessionCounter interface {
	IncrementRelaySessions(ctx context.Context)
	DecrementRelaySessions(ctx context.Context)
}

// Relay bridges a browser WebSocket to the node's subscription endpoint.
type Relay struct {
	source   EndpointSource
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	sessions SessionCounter
	logger   *zap.SugaredLogger
}

// NewRelay builds a relay. checkOrigin decides which browser origins may
// upgrade; it should apply the same policy as CORS.
func NewRelay(source EndpointSource, checkOrigin func(r *http.Request) bool, sessions SessionCounter, logger *zap.SugaredLogger) *Relay {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Relay{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout,
		},
		sessions: sessions,
		logger:   logger,
	}
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Nothing is dialed until the request is a permitted upgrade.
	if !websocket.IsWebSocketUpgrade(r) {
		writeError(w, http.StatusBadRequest, "Expected a WebSocket upgrade request")
		return
	}
	if rl.upgrader.CheckOrigin != nil && !rl.upgrader.CheckOrigin(r) {
		writeError(w, http.StatusForbidden, "Not allowed by CORS")
		return
	}

	ep, err := rl.source.Resolve()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dialTimeout)
	upstreamConn, _, err := rl.dialer.DialContext(ctx, ep.WebSocketURL(), nil)
	cancel()
	if err != nil {
		rl.logger.Warnw("RPC WebSocket dial failed", "error", ep.Redact(err.Error()))
		writeError(w, http.StatusBadGateway, "Failed to connect to RPC node")
		return
	}

	clientConn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		upstreamConn.Close()
		return
	}

	if rl.sessions != nil {
		rl.sessions.IncrementRelaySessions(r.Context())
		defer rl.sessions.DecrementRelaySessions(context.Background())
	}

	rl.bridge(clientConn, upstreamConn)
}

// bridge copies frames both ways until either side stops, then closes both.
func (rl *Relay) bridge(client, node *websocket.Conn) {
	client.SetReadLimit(maxMessageBytes)
	node.SetReadLimit(maxMessageBytes)

	var once sync.Once
	done := make(chan struct{})
	finish := func(from string, err error) {
		once.Do(func() {
			if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				rl.logger.Debugw("RPC WebSocket relay closed", "side", from, "error", err)
			}
			close(done)
		})
	}

	go func() { finish("client", pump(node, client)) }()
	go func() { finish("node", pump(client, node)) }()

	<-done
	deadline := time.Now().Add(writeWait)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = client.WriteControl(websocket.CloseMessage, closeMsg, deadline)
	_ = node.WriteControl(websocket.CloseMessage, closeMsg, deadline)
	client.Close()
	node.Close()
}

// pump copies messages from src to dst. Each conn has exactly one writer.
func pump(dst, src *websocket.Conn) error {
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			return err
		}
		_ = dst.SetWriteDeadline(time.Now().Add(writeWait))
		if err := dst.WriteMessage(mt, msg); err != nil {
			return err
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
