package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"codeberg.org/mutker/devdash/internal/ws"
	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // message types to show, empty means all
	JSON   bool     // print raw frames
}

// Watch streams live messages to w until ctx is done or the daemon closes
// the connection.
func (c *Client) Watch(ctx context.Context, w io.Writer, opts WatchOptions) error {
	target, err := c.WebSocketURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	filter := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filter[f] = true
	}

	done := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}

			var msg ws.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if len(filter) > 0 && !filter[msg.Type] {
				continue
			}

			if opts.JSON {
				fmt.Fprintln(w, string(raw))
				continue
			}
			renderMessage(w, msg, raw)
		}
	}()

	select {
	case <-ctx.Done():
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		return nil
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	}
}

func renderMessage(w io.Writer, msg ws.Message, raw []byte) {
	stamp := msg.At.Local().Format(time.TimeOnly)

	switch msg.Type {
	case ws.TypeNotification:
		var frame struct {
			Data struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			} `json:"data"`
		}
		_ = json.Unmarshal(raw, &frame)
		fmt.Fprintf(w, "  %s  %-12s %s: %s\n", stamp, msg.Type, frame.Data.Title, frame.Data.Body)
	case ws.TypeHaptic:
		var frame struct {
			Data struct {
				Kind string `json:"kind"`
			} `json:"data"`
		}
		_ = json.Unmarshal(raw, &frame)
		fmt.Fprintf(w, "  %s  %-12s %s\n", stamp, msg.Type, frame.Data.Kind)
	case ws.TypeState:
		var frame struct {
			Data struct {
				Battery struct{ Label string } `json:"battery"`
				Steps   struct{ Label string } `json:"steps"`
			} `json:"data"`
		}
		_ = json.Unmarshal(raw, &frame)
		fmt.Fprintf(w, "  %s  %-12s battery %s, steps %s\n", stamp, msg.Type, frame.Data.Battery.Label, frame.Data.Steps.Label)
	default:
		fmt.Fprintf(w, "  %s  %s\n", stamp, string(raw))
	}
}
