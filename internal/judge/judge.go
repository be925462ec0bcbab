// Package judge runs the council's judging stage: a single agent receives the
// anonymized candidate set and must return a structured verdict. Invalid
// verdicts are retried up to the attempt cap; exhaustion aborts the run. There
// is no fallback winner.
package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mverikas/agora/internal/adapter"
	"github.com/mverikas/agora/internal/council"
	"github.com/mverikas/agora/internal/store"
)

// Recorder receives the judge exchange for audit. Recording failures are
// logged, never escalated.
type Recorder interface {
	WriteJudgePrompt(content string) error
	WriteJudgeAttempt(attempt int, raw string) error
}

type Invoker struct {
	agent       council.AgentConfig
	adapter     adapter.Adapter
	recorder    Recorder
	ledger      *store.Store
	runID       string
	timeout     time.Duration
	maxAttempts int
}

func New(agent council.AgentConfig, a adapter.Adapter, rec Recorder, ledger *store.Store, runID string, timeout time.Duration, maxAttempts int) *Invoker {
	return &Invoker{
		agent:       agent,
		adapter:     a,
		recorder:    rec,
		ledger:      ledger,
		runID:       runID,
		timeout:     timeout,
		maxAttempts: maxAttempts,
	}
}

// Judge sends the prompt to the judge agent and returns the first structurally
// valid verdict. The prompt is identical across attempts; only transient
// failures and malformed output trigger a retry.
func (j *Invoker) Judge(ctx context.Context, prompt string, labels []string) (*council.JudgeResult, error) {
	if j.recorder != nil {
		if err := j.recorder.WriteJudgePrompt(prompt); err != nil {
			slog.Error("failed to persist judge prompt", "error", err)
		}
	}

	var lastReason string
	for attempt := 1; attempt <= j.maxAttempts; attempt++ {
		if attempt > 1 {
			slog.Info("retrying judge", "agent", j.agent.Name, "attempt", attempt, "last_reason", lastReason)
		}

		res, reason := j.attempt(ctx, prompt, labels, attempt)

		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, council.NewError(council.RunTimedOut, err)
			}
			return nil, err
		}

		if res != nil {
			slog.Info("judge verdict accepted", "agent", j.agent.Name, "attempt", attempt, "winner", res.Winner)
			return res, nil
		}
		lastReason = reason
	}

	return nil, council.NewAgentError(
		council.JudgePermanentlyFailed,
		j.agent.Name,
		j.maxAttempts,
		fmt.Errorf("judge exhausted retries (last failure: %s)", lastReason),
	)
}

// attempt performs one blocking invocation and classifies the outcome. A nil
// result means the attempt failed for the returned reason.
func (j *Invoker) attempt(ctx context.Context, prompt string, labels []string, attempt int) (*council.JudgeResult, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	out := j.adapter.Invoke(attemptCtx, prompt)
	elapsed := time.Since(start)

	if j.recorder != nil && out.Stdout != "" {
		if err := j.recorder.WriteJudgeAttempt(attempt, out.Stdout); err != nil {
			slog.Error("failed to persist judge attempt", "attempt", attempt, "error", err)
		}
	}

	var reason string
	var res *council.JudgeResult
	switch {
	case out.SpawnErr != nil:
		reason = fmt.Sprintf("spawn failed: %v", out.SpawnErr)
	case out.TimedOut:
		reason = "timed out"
	case out.ExitCode != 0:
		reason = fmt.Sprintf("exit code %d", out.ExitCode)
	default:
		parsed, err := ParseVerdict(out.Stdout, labels)
		if err != nil {
			reason = fmt.Sprintf("invalid verdict: %v", err)
		} else {
			res = parsed
		}
	}

	valid := res != nil
	if !valid {
		slog.Warn("judge attempt rejected", "agent", j.agent.Name, "attempt", attempt, "reason", reason)
	}

	if j.ledger != nil {
		att := &store.Attempt{
			RunID:    j.runID,
			Agent:    j.agent.Name,
			Role:     "judge",
			Attempt:  attempt,
			Valid:    valid,
			ExitCode: out.ExitCode,
			TimedOut: out.TimedOut,
			Duration: elapsed,
			Reason:   reason,
		}
		if err := j.ledger.SaveAttempt(att); err != nil {
			slog.Error("failed to record judge attempt in ledger", "error", err)
		}
	}

	return res, reason
}
