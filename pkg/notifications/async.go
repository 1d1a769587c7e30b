package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/meetup/pkg/observability"
)

// ErrQueueFull is returned when an AsyncPublisher cannot accept a notice
var ErrQueueFull = errors.New("notice queue is full")

// ErrPublisherClosed is returned after Close
var ErrPublisherClosed = errors.New("notice publisher is closed")

// AsyncPublisher hands notices to a fixed pool of workers so that callers
// never wait on the underlying publisher. Notices are dropped with
// ErrQueueFull when the buffer is exhausted.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics

	queue chan *Notice
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsyncPublisher starts workers goroutines publishing through next.
// Each publish gets its own timeout.
func NewAsyncPublisher(next Publisher, workers, buffer int, timeout time.Duration, logger *observability.Logger) *AsyncPublisher {
	if workers <= 0 {
		workers = 1
	}
	if buffer < workers {
		buffer = workers * 2
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	p := &AsyncPublisher{
		next:    next,
		timeout: timeout,
		logger:  logger.WithField("component", "notifications"),
		queue:   make(chan *Notice, buffer),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// SetMetrics counts delivery results of queued notices
func (p *AsyncPublisher) SetMetrics(metrics *observability.Metrics) {
	p.metrics = metrics
}

// Publish queues the notice
func (p *AsyncPublisher) Publish(ctx context.Context, notice *Notice) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- notice:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting notices and waits for queued ones to be published
// or for ctx to end
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notice queue not drained: %w", ctx.Err())
	}
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()
	for notice := range p.queue {
		p.deliver(notice)
	}
}

func (p *AsyncPublisher) deliver(notice *Notice) {
	defer observability.RecoverPanic(p.logger, "notice delivery")

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.next.Publish(ctx, notice)
	if p.metrics != nil {
		p.metrics.RecordNotice(string(notice.Type), err)
	}
	if err != nil {
		p.logger.WithError(err).
			WithField("notice_id", notice.ID).
			WithField("notice_type", string(notice.Type)).
			Warn("failed to deliver notice")
	}
}
