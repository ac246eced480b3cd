package notifications

import (
	"context"
	"log/slog"

	"dwd/internal/logging"
)

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.NewComponentLogger(logger, "notifications")}
}

func (n *LogNotifier) Notify(message string, level Level) {
	n.logger.Log(context.Background(), slogLevel(level), message,
		logging.String(logging.FieldEventType, "notification"),
		logging.String("level_name", string(level)),
	)
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarning:
		return slog.LevelWarn
	case LevelError, LevelCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
