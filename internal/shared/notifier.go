package shared

import (
	"context"
	"log/slog"
)

// Notice kinds understood by clients.
const (
	NoticeSuccess = "success"
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// Notifier delivers transient user-facing messages. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, kind, message string)
}

// LogNotifier writes notices to the structured log only.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, kind, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch kind {
	case NoticeError:
		level = slog.LevelError
	case NoticeWarning:
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notice", slog.String("kind", kind), slog.String("message", message))
}

// SessionNotifier queues notices as flash messages on the request session and logs them.
type SessionNotifier struct {
	Log LogNotifier
}

// Notify implements Notifier.
func (n SessionNotifier) Notify(ctx context.Context, kind, message string) {
	n.Log.Notify(ctx, kind, message)
	if sess := SessionFromContext(ctx); sess != nil {
		sess.AddFlash(FlashMessage{Kind: kind, Message: message})
	}
}
