package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Infow("notification",
		"type", n.Type,
		"entity", n.Entity,
		"entity_id", n.EntityID,
		"message", n.Message,
		"payload", n.Payload,
	)
	return nil
}
