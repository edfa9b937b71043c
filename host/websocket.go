package host

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/charcount/middleware"
	"github.com/felixgeelhaar/charcount/transport"
)

// WebSocketOption configures the WebSocket entry point.
type WebSocketOption func(*wsConfig)

type wsConfig struct {
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// WithWebSocketReadTimeout sets the idle timeout between frames.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return func(c *wsConfig) {
		c.readTimeout = d
	}
}

// WithWebSocketWriteTimeout sets the timeout for writing a reply frame.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return func(c *wsConfig) {
		c.writeTimeout = d
	}
}

// WithWebSocketCheckOrigin sets the origin check for upgrades.
func WithWebSocketCheckOrigin(fn func(r *http.Request) bool) WebSocketOption {
	return func(c *wsConfig) {
		c.upgrader.CheckOrigin = fn
	}
}

// WebSocketHandler upgrades the connection and treats every text frame as
// the body of a POST. Each frame gets its own JSON-mode transport, and any
// non-empty response body is sent back as one text frame.
func WebSocketHandler(a *Adapter, opts ...WebSocketOption) http.Handler {
	cfg := &wsConfig{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	frames := a.with(func(o *transport.StreamableOptions) {
		o.JSONResponse = true
		o.HoldStream = false
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cfg.upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.logger.Warn("websocket upgrade failed", middleware.F("error", err.Error()))
			return
		}
		defer conn.Close()
		conn.SetReadLimit(a.bodyLimit())

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		header := http.Header{}
		header.Set("Content-Type", transport.ContentTypeJSON)
		header.Set("Accept", transport.ContentTypeJSON)
		if ua := r.Header.Get("User-Agent"); ua != "" {
			header.Set("User-Agent", ua)
		}

		for {
			if cfg.readTimeout > 0 {
				_ = conn.SetReadDeadline(time.Now().Add(cfg.readTimeout))
			}
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					a.logger.Debug("websocket closed", middleware.F("error", err.Error()))
				}
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}

			b := newBufferBinding(ctx, http.MethodPost, header.Clone(), data, r.RemoteAddr)
			frames.Serve(b)
			if b.out.Len() == 0 {
				continue
			}

			if cfg.writeTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(cfg.writeTimeout))
			}
			if err := conn.WriteMessage(websocket.TextMessage, b.out.Bytes()); err != nil {
				a.logger.Warn("websocket write failed", middleware.F("error", err.Error()))
				return
			}
		}
	})
}
