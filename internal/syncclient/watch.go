package syncclient

import (
	"context"
	"net/url"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"timepon/engine/internal/service"
)

// Watch subscribes to /ws/watch for ids and calls fn with every frame until
// ctx ends or the server closes the stream. A normal close returns nil.
func (c *Client) Watch(ctx context.Context, ids []string, fn func(service.View)) error {
	u := c.base + "/ws/watch?" + url.Values{"ids": {strings.Join(ids, ",")}}.Encode()
	u = "ws" + strings.TrimPrefix(u, "http")

	opts := &websocket.DialOptions{}
	// the dialer refuses clients with a Timeout; ctx bounds the stream instead
	if c.http.Timeout == 0 {
		opts.HTTPClient = c.http
	}
	conn, _, err := websocket.Dial(ctx, u, opts)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		var v service.View
		if err := wsjson.Read(ctx, conn, &v); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(v)
	}
}
