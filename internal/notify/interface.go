package notify

import "context"

// NotificationSink shows a local notification. The OS may throttle or deny
// it; that is not an error worth reporting.
type NotificationSink interface {
	Schedule(ctx context.Context, title, body string) error
}

// HapticSink produces best-effort haptic feedback.
type HapticSink interface {
	Trigger(ctx context.Context, kind string) error
}
