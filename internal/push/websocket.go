package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/net/websocket"
)

// WebSocketSubscriber reads call.changed frames from a WebSocket endpoint.
type WebSocketSubscriber struct {
	url    string
	origin string
	sink   Sink
	log    *slog.Logger
}

func NewWebSocketSubscriber(url, origin string, sink Sink, log *slog.Logger) *WebSocketSubscriber {
	if origin == "" {
		origin = "http://localhost/"
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebSocketSubscriber{url: url, origin: origin, sink: sink, log: log}
}

// Run dials the endpoint and delivers frames until ctx is done or the
// server closes the connection. A clean close returns nil.
func (s *WebSocketSubscriber) Run(ctx context.Context) error {
	if s.url == "" || s.sink == nil {
		return errors.New("push: websocket subscriber not configured")
	}
	cfg, err := websocket.NewConfig(s.url, s.origin)
	if err != nil {
		return fmt.Errorf("push: websocket config: %w", err)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("push: dial %s: %w", s.url, err)
	}
	defer conn.Close()
	s.log.Info("push subscriber started", "transport", "websocket", "url", s.url)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("push: receive: %w", err)
		}
		deliver(ctx, s.sink, s.log, raw)
	}
}
