package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/counsel/internal/routing"
)

// Analyzer is the contract the executor fans out over.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (*Result, error)
}

// Outcome is the fan-in of one execute stage. Results and Failed are keyed
// by agent, so completion order never matters.
type Outcome struct {
	Results map[routing.Agent]*Result
	Failed  map[routing.Agent]string
	Elapsed time.Duration
}

// Succeeded lists successful agents in the requested order.
func (o Outcome) Succeeded(order []routing.Agent) []*Result {
	var out []*Result
	for _, a := range order {
		if r, ok := o.Results[a]; ok {
			out = append(out, r)
		}
	}
	return out
}

// AllFromCache reports whether every successful result was served from cache.
func (o Outcome) AllFromCache() bool {
	if len(o.Results) == 0 {
		return false
	}
	for _, r := range o.Results {
		if !r.FromCache {
			return false
		}
	}
	return true
}

type Executor struct {
	specialists map[routing.Agent]Analyzer
	logger      *slog.Logger
}

func NewExecutor(specialists map[routing.Agent]Analyzer, logger *slog.Logger) *Executor {
	return &Executor{specialists: specialists, logger: logger}
}

// Run launches every agent concurrently and waits for all of them. A failing
// agent is recorded in Failed and never stops the others. onDone, if set, is
// called once per agent with either a result or a failure, serialised.
func (e *Executor) Run(ctx context.Context, agents []routing.Agent, in Input, onDone func(*Result)) Outcome {
	start := time.Now()
	out := Outcome{
		Results: make(map[routing.Agent]*Result, len(agents)),
		Failed:  make(map[routing.Agent]string),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, agent := range agents {
		wg.Add(1)
		go func(agent routing.Agent) {
			defer wg.Done()
			agentStart := time.Now()
			res, err := e.analyze(ctx, agent, in)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Error("specialist failed", "agent", agent, "error", err)
				out.Failed[agent] = err.Error()
				res = &Result{Agent: agent, Success: false, Error: err.Error(), Elapsed: time.Since(agentStart)}
			} else {
				out.Results[agent] = res
			}
			if onDone != nil {
				onDone(res)
			}
		}(agent)
	}
	wg.Wait()

	out.Elapsed = time.Since(start)
	e.logger.Info("parallel execution complete",
		"succeeded", len(out.Results),
		"failed", len(out.Failed),
		"elapsed_ms", out.Elapsed.Milliseconds(),
	)
	return out
}

func (e *Executor) analyze(ctx context.Context, agent routing.Agent, in Input) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%s panicked: %v", agent, r)
		}
	}()

	s, ok := e.specialists[agent]
	if !ok {
		return nil, fmt.Errorf("no specialist registered for %s", agent)
	}
	res, err = s.Analyze(ctx, in)
	if err == nil && res == nil {
		err = fmt.Errorf("%s returned no result", agent)
	}
	return res, err
}
