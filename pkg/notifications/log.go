package notifications

import (
	"context"

	"github.com/platinummonkey/meetup/pkg/observability"
)

// LogPublisher writes notices to the application log. It is used when Redis
// is not configured.
type LogPublisher struct {
	logger *observability.Logger
}

// NewLogPublisher creates a log-backed publisher
func NewLogPublisher(logger *observability.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.WithField("component", "notifications")}
}

// Publish logs the notice
func (p *LogPublisher) Publish(ctx context.Context, notice *Notice) error {
	if len(notice.Recipients) == 0 {
		return nil
	}
	p.logger.WithFields(map[string]interface{}{
		"notice_id":  notice.ID,
		"type":       string(notice.Type),
		"recipients": notice.Recipients,
		"location":   notice.LocationSlug,
	}).Info(notice.Message)
	return nil
}
