// Package dispatch launches planner processes in parallel. Every planner runs
// as an isolated child process: no shared mutable state, no channel between
// siblings. Isolation keeps one planner's output from leaking into another's,
// which the anonymization stage depends on.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/mverikas/agora/internal/adapter"
	"github.com/mverikas/agora/internal/council"
	"golang.org/x/sync/errgroup"
)

// Assignment pairs one agent with its rendered prompt and its adapter.
type Assignment struct {
	Agent   council.AgentConfig
	Adapter adapter.Adapter
	Prompt  string
}

// Result is one agent's captured outcome. Failures are values here; the
// collector decides whether they escalate.
type Result struct {
	Agent    string
	Outcome  adapter.Outcome
	Duration time.Duration
}

type Dispatcher struct {
	agentTimeout time.Duration
	concurrency  int
}

// New builds a dispatcher. agentTimeout bounds each attempt; concurrency caps
// simultaneous child processes (0 means one process per assignment).
func New(agentTimeout time.Duration, concurrency int) *Dispatcher {
	return &Dispatcher{agentTimeout: agentTimeout, concurrency: concurrency}
}

// Dispatch runs every assignment concurrently and blocks until all children
// have exited or the parent context is done. The returned slice matches the
// assignment order. Dispatch never returns an error: spawn failures, non-zero
// exits and timeouts are captured per-agent in the results.
func (d *Dispatcher) Dispatch(ctx context.Context, assignments []Assignment) []Result {
	results := make([]Result, len(assignments))

	g, gctx := errgroup.WithContext(ctx)
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}

	for i, a := range assignments {
		g.Go(func() error {
			results[i] = d.invoke(gctx, a)
			return nil
		})
	}

	// Workers only return nil; Wait is a barrier, not an error source.
	_ = g.Wait()
	return results
}

func (d *Dispatcher) invoke(ctx context.Context, a Assignment) Result {
	attemptCtx, cancel := context.WithTimeout(ctx, d.agentTimeout)
	defer cancel()

	slog.Info("dispatching planner", "agent", a.Agent.Name, "kind", a.Agent.Kind, "timeout", d.agentTimeout)

	start := time.Now()
	outcome := a.Adapter.Invoke(attemptCtx, a.Prompt)
	elapsed := time.Since(start)

	switch {
	case outcome.SpawnErr != nil:
		slog.Warn("planner spawn failed", "agent", a.Agent.Name, "error", outcome.SpawnErr)
	case outcome.TimedOut:
		slog.Warn("planner timed out", "agent", a.Agent.Name, "after", elapsed)
	case outcome.ExitCode != 0:
		slog.Warn("planner exited non-zero", "agent", a.Agent.Name, "exit_code", outcome.ExitCode)
	default:
		slog.Info("planner finished", "agent", a.Agent.Name, "duration", elapsed, "stdout_bytes", len(outcome.Stdout))
	}

	return Result{Agent: a.Agent.Name, Outcome: outcome, Duration: elapsed}
}
