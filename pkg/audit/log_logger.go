package audit

import (
	"context"

	"github.com/platinummonkey/meetup/pkg/observability"
)

// LogLogger writes audit events to the structured application log
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates an audit logger backed by logger
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger.WithField("component", "audit")}
}

// Log writes one line per event
func (l *LogLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.LocationSlug != "" {
		fields["location"] = event.LocationSlug
	}
	if event.TargetUsername != "" {
		fields["target"] = event.TargetUsername
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}

	l.logger.WithFields(fields).Info(event.Message)
	return nil
}

// Close is a no-op
func (l *LogLogger) Close() error {
	return nil
}
