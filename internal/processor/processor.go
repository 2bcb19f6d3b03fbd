// Package processor runs questions that arrive over NATS through the
// advisory pipeline.
package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/orchestrator"
)

// DefaultMaxInFlight bounds how many runs one instance works on at once.
const DefaultMaxInFlight = 4

// DefaultQueueDepth bounds how many accepted questions may wait for a
// worker. Questions beyond it are dropped.
const DefaultQueueDepth = 32

// runTimeout caps a single run started from the bus. Stage time limits
// are enforced by the quality gates, this only stops runaway calls.
const runTimeout = 2 * time.Minute

// Runner is the pipeline as seen by the processor.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request, sink orchestrator.Sink) (*orchestrator.PipelineState, error)
}

// Processor turns counsel.question.asked messages into pipeline runs on a
// fixed pool of workers.
type Processor struct {
	runner Runner
	sink   orchestrator.Sink
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan orchestrator.Request
	wg      sync.WaitGroup
	dropped atomic.Int64
}

func New(runner Runner, sink orchestrator.Sink, maxInFlight int, logger *slog.Logger) *Processor {
	return newProcessor(runner, sink, maxInFlight, DefaultQueueDepth, logger)
}

func newProcessor(runner Runner, sink orchestrator.Sink, workers, depth int, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = DefaultMaxInFlight
	}
	if depth < 0 {
		depth = 0
	}
	p := &Processor{
		runner: runner,
		sink:   sink,
		logger: logger,
		queue:  make(chan orchestrator.Request, depth),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// HandleQuestionAsked is the NATS handler for counsel.question.asked. It
// never blocks: a question is either queued for a worker or, when the
// queue is full or the processor is closed, dropped with a warning.
func (p *Processor) HandleQuestionAsked(subject string, data []byte) {
	var req orchestrator.Request
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("failed to parse question event", "subject", subject, "error", err)
		return
	}
	if err := req.Validate(); err != nil {
		p.logger.Warn("rejected question event", "run_id", req.RunID, "error", err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("processor closed, dropping question", "run_id", req.RunID)
		return
	}
	select {
	case p.queue <- req:
	default:
		p.dropped.Add(1)
		p.logger.Warn("question queue full, dropping question",
			"run_id", req.RunID,
			"user_id", req.UserID,
			"queued", len(p.queue),
		)
	}
}

func (p *Processor) work() {
	defer p.wg.Done()
	for req := range p.queue {
		p.run(req)
	}
}

func (p *Processor) run(req orchestrator.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s, err := p.runner.Run(ctx, req, p.sink)
	if err != nil {
		p.logger.Error("run failed", "run_id", req.RunID, "user_id", req.UserID, "error", err)
		return
	}
	p.logger.Info("question processed",
		"run_id", s.RunID,
		"success", s.Success,
		"quality_passed", s.Quality.Passed,
	)
}

// Dropped reports how many valid questions were turned away.
func (p *Processor) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting questions and blocks until every queued run has
// finished. It is safe to call more than once.
func (p *Processor) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
