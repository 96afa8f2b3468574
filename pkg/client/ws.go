package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lightpool/lightpool-go/pkg/events"
)

// SubscribeEvents streams chain events to handler until ctx is
// cancelled or the connection drops. Reconnecting is left to the
// caller.
func (c *Client) SubscribeEvents(ctx context.Context, handler func(events.Event)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial event stream: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	c.log.Debug("event stream open", zap.String("url", wsURL))
	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream read: %w", err)
		}
		handler(ev)
	}
}
