package notify

import (
	"context"
	"os/exec"

	"codeberg.org/mutker/devdash/internal/errors"
	"codeberg.org/mutker/devdash/internal/logger"
	"codeberg.org/mutker/devdash/internal/ws"
)

const (
	appName     = "devdash"
	maxTitleLen = 200
	maxBodyLen  = 500
)

// LogSink writes notifications and haptics to the log.
type LogSink struct {
	Log logger.Logger
}

func (s LogSink) Schedule(_ context.Context, title, body string) error {
	s.Log.Info().Str("title", title).Str("body", body).Msg("Notification")
	return nil
}

func (s LogSink) Trigger(_ context.Context, kind string) error {
	s.Log.Debug().Str("kind", kind).Msg("Haptic feedback")
	return nil
}

// DesktopSink shows notifications through notify-send.
type DesktopSink struct {
	path string
}

// NewDesktopSink looks up notify-send on PATH.
func NewDesktopSink() (*DesktopSink, error) {
	path, err := exec.LookPath("notify-send")
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrUnavailable, err)
	}
	return &DesktopSink{path: path}, nil
}

func (s *DesktopSink) Schedule(ctx context.Context, title, body string) error {
	cmd := exec.CommandContext(ctx, s.path, "--app-name="+appName, truncate(title, maxTitleLen), truncate(body, maxBodyLen))
	if err := cmd.Run(); err != nil {
		return errors.New().Wrap(errors.ErrDispatchFailed, err)
	}
	return nil
}

// HubSink forwards notifications and haptics to WebSocket clients, where the
// rendering device shows them.
type HubSink struct {
	Hub *ws.Hub
}

type notificationMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type hapticMessage struct {
	Kind string `json:"kind"`
}

func (s HubSink) Schedule(_ context.Context, title, body string) error {
	s.Hub.Publish(ws.TypeNotification, notificationMessage{Title: title, Body: body})
	return nil
}

func (s HubSink) Trigger(_ context.Context, kind string) error {
	s.Hub.Publish(ws.TypeHaptic, hapticMessage{Kind: kind})
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []NotificationSink

func (m Multi) Schedule(ctx context.Context, title, body string) error {
	var errs []error
	for _, s := range m {
		if err := s.Schedule(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiHaptic triggers every haptic sink and joins their errors.
type MultiHaptic []HapticSink

func (m MultiHaptic) Trigger(ctx context.Context, kind string) error {
	var errs []error
	for _, s := range m {
		if err := s.Trigger(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
