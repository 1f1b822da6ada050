package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/domain"
)

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		QueueSize:      10,
		Workers:        1,
		HandlerTimeout: time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
}

// TestPipeline_PriorityOrdering covers property 8 / scenario S4: submitted
// out of priority order while a worker is busy, HIGH still dispatches
// before the earlier-submitted NORMAL events once a worker frees up.
func TestPipeline_PriorityOrdering(t *testing.T) {
	p := NewPipeline(testConfig())

	var mu sync.Mutex
	var dispatched []string
	release := make(chan struct{})
	var first int32

	p.RegisterHandler(domain.EventGPS, func(ctx context.Context, e domain.Event) error {
		if atomic.CompareAndSwapInt32(&first, 0, 1) {
			<-release // hold the single worker busy while the rest queue up
		}
		mu.Lock()
		dispatched = append(dispatched, "GPS")
		mu.Unlock()
		return nil
	})
	p.RegisterHandler(domain.EventTraffic, func(ctx context.Context, e domain.Event) error {
		mu.Lock()
		dispatched = append(dispatched, "TRAFFIC")
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	require.NoError(t, p.Submit(domain.Event{Kind: domain.EventGPS, Priority: domain.PriorityNormal}))
	time.Sleep(20 * time.Millisecond) // let the single worker pick up the blocking GPS event
	require.NoError(t, p.Submit(domain.Event{Kind: domain.EventGPS, Priority: domain.PriorityNormal}))
	require.NoError(t, p.Submit(domain.Event{Kind: domain.EventTraffic, Priority: domain.PriorityHigh}))

	close(release)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dispatched, 3)
	assert.Equal(t, "GPS", dispatched[0]) // the blocking event, already in flight
	assert.Equal(t, "TRAFFIC", dispatched[1])
	assert.Equal(t, "GPS", dispatched[2])
}

func TestPipeline_QueueFull_ReturnsQueueFullError(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 2
	p := NewPipeline(cfg)
	p.RegisterHandler(domain.EventGPS, func(ctx context.Context, e domain.Event) error {
		<-ctx.Done() // never completes on its own; keeps the queue full
		return ctx.Err()
	})

	// No workers started: nothing drains the queue.
	require.NoError(t, p.Submit(domain.Event{Kind: domain.EventGPS}))
	require.NoError(t, p.Submit(domain.Event{Kind: domain.EventGPS}))

	err := p.Submit(domain.Event{Kind: domain.EventGPS})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeQueueFull))
}

func TestPipeline_HandlerFailure_RetriesThenDeadLetters(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	p := NewPipeline(cfg)

	var calls int32
	p.RegisterHandler(domain.EventOrderCancel, func(ctx context.Context, e domain.Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("handler always fails")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	require.NoError(t, p.Submit(domain.Event{Kind: domain.EventOrderCancel}))
	require.Eventually(t, func() bool {
		return len(p.DeadLetters()) == 1
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls)) // initial attempt + 2 retries
	dead := p.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, domain.EventOrderCancel, dead[0].Event.Kind)
	assert.Equal(t, 3, dead[0].Attempts)
}

func TestPipeline_MissingHandler_DeadLettersImmediately(t *testing.T) {
	p := NewPipeline(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	require.NoError(t, p.Submit(domain.Event{Kind: domain.EventVisitComplete}))
	require.Eventually(t, func() bool {
		return len(p.DeadLetters()) == 1
	}, time.Second, 5*time.Millisecond)
	p.Stop()
}
