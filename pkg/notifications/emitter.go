package notifications

import (
	"context"

	"github.com/platinummonkey/meetup/pkg/observability"
)

// Emitter publishes notices after a transaction has committed. Publishing
// failures are logged and counted, never returned to the caller.
type Emitter struct {
	publisher Publisher
	metrics   *observability.Metrics
}

// NewEmitter wraps a publisher. metrics may be nil.
func NewEmitter(publisher Publisher, metrics *observability.Metrics) *Emitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Emitter{publisher: publisher, metrics: metrics}
}

// Emit publishes each notice, skipping those without recipients
func (e *Emitter) Emit(ctx context.Context, notices ...*Notice) {
	for _, n := range notices {
		if n == nil || len(n.Recipients) == 0 {
			continue
		}

		err := e.publisher.Publish(ctx, n)
		if e.metrics != nil {
			e.metrics.RecordNotice(string(n.Type), err)
		}
		if err != nil {
			observability.FromContext(ctx).
				WithError(err).
				WithField("notice_type", string(n.Type)).
				Warn("failed to publish notice")
		}
	}
}
