package notifications

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/meetup/pkg/observability"
)

type blockingPublisher struct {
	mu      sync.Mutex
	release chan struct{}
	got     []*Notice
	err     error
}

func (p *blockingPublisher) Publish(ctx context.Context, n *Notice) error {
	if p.release != nil {
		<-p.release
	}
	if n.Message == "panic" {
		panic("publisher exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, n)
	return p.err
}

func (p *blockingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestAsyncPublisherDeliversQueuedNotices(t *testing.T) {
	inner := &blockingPublisher{}
	p := NewAsyncPublisher(inner, 2, 10, time.Second, quietLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish(context.Background(), NewNotice(NoticeNewMeetup, []int64{1}, "hello")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
	assert.Equal(t, 5, inner.count())

	assert.ErrorIs(t, p.Publish(context.Background(), NewNotice(NoticeNewMeetup, []int64{1}, "late")), ErrPublisherClosed)
	assert.NoError(t, p.Close(ctx), "closing twice is fine")
}

func TestAsyncPublisherQueueFull(t *testing.T) {
	inner := &blockingPublisher{release: make(chan struct{})}
	p := NewAsyncPublisher(inner, 1, 1, time.Second, quietLogger())

	// the worker takes one, the buffer holds one
	require.NoError(t, p.Publish(context.Background(), NewNotice(NoticeNewMeetup, []int64{1}, "a")))
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, p.Publish(context.Background(), NewNotice(NoticeNewMeetup, []int64{1}, "b")))

	assert.ErrorIs(t, p.Publish(context.Background(), NewNotice(NoticeNewMeetup, []int64{1}, "c")), ErrQueueFull)

	close(inner.release)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, 2, inner.count())
}

func TestAsyncPublisherRecordsFailuresAndSurvivesPanics(t *testing.T) {
	inner := &blockingPublisher{err: errors.New("redis down")}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	p := NewAsyncPublisher(inner, 1, 4, time.Second, quietLogger())
	p.SetMetrics(metrics)

	require.NoError(t, p.Publish(context.Background(), NewNotice(NoticeNewMeetup, []int64{1}, "panic")))
	require.NoError(t, p.Publish(context.Background(), NewNotice(NoticeMadeOrganizer, []int64{1}, "ok")))
	require.NoError(t, p.Close(context.Background()))

	assert.Equal(t, 1, inner.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.NoticesPublished.WithLabelValues(string(NoticeMadeOrganizer), "error")))
}

func TestAsyncPublisherCloseTimeout(t *testing.T) {
	inner := &blockingPublisher{release: make(chan struct{})}
	defer close(inner.release)
	p := NewAsyncPublisher(inner, 1, 2, time.Second, quietLogger())
	require.NoError(t, p.Publish(context.Background(), NewNotice(NoticeNewMeetup, []int64{1}, "stuck")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Close(ctx), context.DeadlineExceeded)
}
