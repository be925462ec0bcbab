// Package collector waits on dispatched planners, validates their output, and
// applies the bounded-retry policy. A planner that stays invalid through its
// final attempt fails the whole run: a council missing a member is treated as
// unreliable, never as degraded-but-usable.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mverikas/agora/internal/council"
	"github.com/mverikas/agora/internal/dispatch"
	"github.com/mverikas/agora/internal/store"
)

// Recorder receives every attempt for audit. Recording failures are logged,
// never escalated; the retry decision does not depend on them.
type Recorder interface {
	WriteSubmission(sub council.PlanSubmission) error
}

type Collector struct {
	dispatcher  *dispatch.Dispatcher
	recorder    Recorder
	ledger      *store.Store
	runID       string
	maxAttempts int
	sections    []string
}

func New(d *dispatch.Dispatcher, rec Recorder, ledger *store.Store, runID string, maxAttempts int, requiredSections []string) *Collector {
	return &Collector{
		dispatcher:  d,
		recorder:    rec,
		ledger:      ledger,
		runID:       runID,
		maxAttempts: maxAttempts,
		sections:    requiredSections,
	}
}

// Collect runs all assignments through the dispatcher, retrying only the
// planners whose attempts came back invalid, up to the attempt cap. On
// success the submissions come back one per planner, in assignment order.
func (c *Collector) Collect(ctx context.Context, assignments []dispatch.Assignment) ([]council.PlanSubmission, error) {
	accepted := make(map[string]council.PlanSubmission, len(assignments))
	failed := make(map[string]council.PlanSubmission)

	pending := assignments
	for attempt := 1; attempt <= c.maxAttempts && len(pending) > 0; attempt++ {
		if attempt > 1 {
			names := make([]string, len(pending))
			for i, a := range pending {
				names[i] = a.Agent.Name
			}
			slog.Info("retrying planners", "attempt", attempt, "agents", strings.Join(names, ", "))
		}

		results := c.dispatcher.Dispatch(ctx, pending)

		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, council.NewError(council.RunTimedOut, err)
			}
			return nil, err
		}

		var next []dispatch.Assignment
		for i, res := range results {
			sub := c.evaluate(res, attempt)
			c.record(sub, res)

			if sub.Valid {
				accepted[sub.AgentName] = sub
				continue
			}
			failed[sub.AgentName] = sub
			next = append(next, pending[i])
		}
		pending = next
	}

	if len(pending) > 0 {
		names := make([]string, len(pending))
		for i, a := range pending {
			names[i] = a.Agent.Name
		}
		first := failed[names[0]]
		return nil, council.NewAgentError(
			council.AgentPermanentlyFailed,
			names[0],
			c.maxAttempts,
			fmt.Errorf("planners exhausted retries: %s (last failure: %s)", strings.Join(names, ", "), first.Reason),
		)
	}

	// Expose submissions in original roster order, independent of which
	// attempt or retry round produced them.
	out := make([]council.PlanSubmission, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, accepted[a.Agent.Name])
	}
	return out, nil
}

// evaluate classifies one dispatch result into a submission.
func (c *Collector) evaluate(res dispatch.Result, attempt int) council.PlanSubmission {
	sub := council.PlanSubmission{
		AgentName:     res.Agent,
		AttemptNumber: attempt,
		Stdout:        res.Outcome.Stdout,
		Stderr:        res.Outcome.Stderr,
		ExitCode:      res.Outcome.ExitCode,
		TimedOut:      res.Outcome.TimedOut,
	}

	switch {
	case res.Outcome.SpawnErr != nil:
		sub.Reason = fmt.Sprintf("spawn failed: %v", res.Outcome.SpawnErr)
	case res.Outcome.TimedOut:
		sub.Reason = "timed out"
	case res.Outcome.ExitCode != 0:
		sub.Reason = fmt.Sprintf("exit code %d", res.Outcome.ExitCode)
	default:
		ok, reason := ValidateMarkdown(res.Outcome.Stdout, c.sections)
		sub.Valid = ok
		sub.Reason = reason
	}

	if !sub.Valid {
		slog.Warn("submission rejected", "agent", sub.AgentName, "attempt", attempt, "reason", sub.Reason)
	}
	return sub
}

func (c *Collector) record(sub council.PlanSubmission, res dispatch.Result) {
	if c.recorder != nil {
		if err := c.recorder.WriteSubmission(sub); err != nil {
			slog.Error("failed to persist submission artifact", "agent", sub.AgentName, "attempt", sub.AttemptNumber, "error", err)
		}
	}
	if c.ledger != nil {
		att := &store.Attempt{
			RunID:    c.runID,
			Agent:    sub.AgentName,
			Role:     "planner",
			Attempt:  sub.AttemptNumber,
			Valid:    sub.Valid,
			ExitCode: sub.ExitCode,
			TimedOut: sub.TimedOut,
			Duration: res.Duration,
			Reason:   sub.Reason,
		}
		if err := c.ledger.SaveAttempt(att); err != nil {
			slog.Error("failed to record attempt in ledger", "agent", sub.AgentName, "error", err)
		}
	}
}
