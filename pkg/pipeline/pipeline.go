// Package pipeline implements the EventPipeline (C9): a bounded priority
// queue of domain events, drained by a fixed worker pool through a
// kind-keyed handler registry, with per-handler timeouts and a
// retry-then-dead-letter policy on handler failure.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"routecore/pkg/apperror"
	"routecore/pkg/config"
	"routecore/pkg/domain"
	"routecore/pkg/logger"
	"routecore/pkg/metrics"
)

// Event is the unit of work the pipeline queues and dispatches.
type Event = domain.Event

// Handler processes one Event. A non-nil error causes the event to be
// retried (up to the pipeline's max_retries) before it is dead-lettered.
type Handler func(ctx context.Context, event Event) error

// DeadLetterEntry is a retained, replayable record of an event that
// exhausted its retries.
type DeadLetterEntry struct {
	Event    Event
	Err      error
	Attempts int
	At       time.Time
}

// Pipeline is the C9 component: Submit enqueues, the worker pool dispatches
// through RegisterHandler's registry, Stop drains to quiescence.
type Pipeline struct {
	cfg config.PipelineConfig

	mu       sync.Mutex
	cond     *sync.Cond
	queue    *eventHeap
	stopped  bool
	sequence uint64

	handlersMu sync.RWMutex
	handlers   map[domain.EventKind]Handler

	deadMu      sync.Mutex
	deadLetters []DeadLetterEntry

	wg sync.WaitGroup
}

// NewPipeline builds a Pipeline. Zero-valued QueueSize/Workers fall back to
// spec defaults (1000, 8) and a negative MaxRetries to 3 (zero means no
// retries); HandlerTimeout defaults to 10s and RetryBaseDelay to 200ms.
func NewPipeline(cfg config.PipelineConfig) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}

	p := &Pipeline{
		cfg:      cfg,
		queue:    newEventHeap(),
		handlers: make(map[domain.EventKind]Handler),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// RegisterHandler maps kind to h. Registration is expected at start-up,
// before Start; it is safe to call concurrently with Submit/dispatch but
// not designed for hot-swapping handlers mid-flight.
func (p *Pipeline) RegisterHandler(kind domain.EventKind, h Handler) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[kind] = h
}

// Submit enqueues event. Non-blocking: if the queue is already at
// cfg.QueueSize, it returns a QueueFull error immediately rather than
// dropping the event silently (spec.md §7).
func (p *Pipeline) Submit(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return apperror.New(apperror.CodeInternal, "pipeline is stopped")
	}
	if p.queue.Len() >= p.cfg.QueueSize {
		metrics.Get().RecordPipelineDropped()
		return apperror.New(apperror.CodeQueueFull, "event pipeline queue is full").WithDetails("kind", string(event.Kind))
	}

	event.Sequence = atomic.AddUint64(&p.sequence, 1)
	p.queue.push(queuedEvent{event: event})
	metrics.Get().SetPipelineQueueDepth(p.queue.Len())
	p.cond.Signal()
	return nil
}

// Start launches cfg.Workers worker goroutines and returns immediately.
// Workers run until Stop is called or ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx)
	}
	go func() {
		<-ctx.Done()
		p.Stop()
	}()
}

// Stop signals all workers to shut down once the queue drains to empty.
// In-flight handler calls run to completion (or their timeout); already
// queued events are still dispatched before workers exit (spec.md §4.9:
// "queued events are drained to a quiescent state"). Stop blocks until
// every worker has exited.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		p.cond.Broadcast()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) workerLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		qe, ok := p.nextEvent()
		if !ok {
			return
		}
		p.dispatch(ctx, qe)
	}
}

// nextEvent blocks until an event is available or the pipeline has both
// stopped and drained.
func (p *Pipeline) nextEvent() (queuedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.queue.Len() == 0 {
		if p.stopped {
			return queuedEvent{}, false
		}
		p.cond.Wait()
	}
	qe, _ := p.queue.popNext()
	metrics.Get().SetPipelineQueueDepth(p.queue.Len())
	return qe, true
}

func (p *Pipeline) requeue(qe queuedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.deadLetter(qe, apperror.New(apperror.CodeCancelled, "pipeline stopped before retry"))
		return
	}
	p.queue.push(qe)
	metrics.Get().SetPipelineQueueDepth(p.queue.Len())
	p.cond.Signal()
}

func (p *Pipeline) dispatch(ctx context.Context, qe queuedEvent) {
	p.handlersMu.RLock()
	handler, ok := p.handlers[qe.event.Kind]
	p.handlersMu.RUnlock()
	if !ok {
		logger.Log.Warn("pipeline: no handler registered", "kind", qe.event.Kind)
		p.deadLetter(qe, apperror.New(apperror.CodeNotFound, "no handler registered").WithField(string(qe.event.Kind)))
		return
	}

	hctx, cancel := context.WithTimeout(ctx, p.cfg.HandlerTimeout)
	defer cancel()

	start := time.Now()
	err := handler(hctx, qe.event)
	metrics.Get().RecordPipelineHandler(string(qe.event.Kind), time.Since(start))

	if err == nil {
		return
	}
	if hctx.Err() == context.DeadlineExceeded {
		logger.Log.Warn("pipeline: handler timed out", "kind", qe.event.Kind, "sequence", qe.event.Sequence)
	}

	qe.attempt++
	if qe.attempt > p.cfg.MaxRetries {
		p.deadLetter(qe, err)
		return
	}

	delay := p.cfg.RetryBaseDelay * time.Duration(1<<uint(qe.attempt-1))
	time.AfterFunc(delay, func() { p.requeue(qe) })
}

func (p *Pipeline) deadLetter(qe queuedEvent, err error) {
	p.deadMu.Lock()
	p.deadLetters = append(p.deadLetters, DeadLetterEntry{Event: qe.event, Err: err, Attempts: qe.attempt, At: time.Now()})
	p.deadMu.Unlock()
	metrics.Get().RecordPipelineDeadLetter(string(qe.event.Kind))
	logger.Log.Warn("pipeline: event dead-lettered", "kind", qe.event.Kind, "attempts", qe.attempt, "error", err)
}

// DeadLetters returns a snapshot of events that exhausted their retries,
// retained for manual replay (spec.md §7).
func (p *Pipeline) DeadLetters() []DeadLetterEntry {
	p.deadMu.Lock()
	defer p.deadMu.Unlock()
	out := make([]DeadLetterEntry, len(p.deadLetters))
	copy(out, p.deadLetters)
	return out
}
