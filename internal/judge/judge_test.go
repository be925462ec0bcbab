package judge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mverikas/agora/internal/adapter"
	"github.com/mverikas/agora/internal/council"
)

var testLabels = []string{"Plan A", "Plan B", "Plan C"}

const validVerdict = `Some preamble from the model.

Winner: Plan B

## Scores
- Plan A: 6/10 solid but slow
- Plan B: 9/10 best tradeoff
- Plan C: 4/10 risky

## Ranking
1. Plan B
2. Plan A
3. Plan C

## Final Plan
1. Ship the canary first.
2. Watch error budgets for a day.
3. Roll forward.
`

type scriptedAdapter struct {
	mu       sync.Mutex
	outcomes []adapter.Outcome
	calls    int
}

func (s *scriptedAdapter) Invoke(ctx context.Context, prompt string) adapter.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.calls++
	return s.outcomes[i]
}

type memRecorder struct {
	prompt   string
	attempts []string
}

func (m *memRecorder) WriteJudgePrompt(content string) error {
	m.prompt = content
	return nil
}

func (m *memRecorder) WriteJudgeAttempt(attempt int, raw string) error {
	m.attempts = append(m.attempts, raw)
	return nil
}

func newInvoker(a adapter.Adapter, rec Recorder) *Invoker {
	agent := council.AgentConfig{Name: "arbiter", Kind: council.KindCustom}
	return New(agent, a, rec, nil, "test-run", time.Second, 3)
}

func TestJudgeAcceptsValidVerdict(t *testing.T) {
	rec := &memRecorder{}
	inv := newInvoker(&scriptedAdapter{outcomes: []adapter.Outcome{{Stdout: validVerdict}}}, rec)

	res, err := inv.Judge(context.Background(), "judge prompt", testLabels)
	if err != nil {
		t.Fatalf("judge: %v", err)
	}

	if res.Winner != "Plan B" {
		t.Errorf("expected winner Plan B, got %q", res.Winner)
	}
	if !strings.Contains(res.FinalPlanText, "Ship the canary first") {
		t.Errorf("final plan text not extracted: %q", res.FinalPlanText)
	}
	if len(res.Ranking) != 3 || res.Ranking[0] != "Plan B" {
		t.Errorf("unexpected ranking: %v", res.Ranking)
	}
	if res.Scores["Plan C"] != "4/10 risky" {
		t.Errorf("unexpected scores: %v", res.Scores)
	}
	if rec.prompt != "judge prompt" {
		t.Errorf("judge prompt not recorded")
	}
	if len(rec.attempts) != 1 {
		t.Errorf("expected 1 recorded attempt, got %d", len(rec.attempts))
	}
}

func TestJudgeRetriesOnInvalidVerdict(t *testing.T) {
	rec := &memRecorder{}
	flaky := &scriptedAdapter{outcomes: []adapter.Outcome{
		{Stdout: "I cannot decide."},
		{ExitCode: 1, Stderr: "rate limited"},
		{Stdout: validVerdict},
	}}
	inv := newInvoker(flaky, rec)

	res, err := inv.Judge(context.Background(), "p", testLabels)
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if res.Winner != "Plan B" {
		t.Errorf("expected winner Plan B, got %q", res.Winner)
	}
	if flaky.calls != 3 {
		t.Errorf("expected 3 invocations, got %d", flaky.calls)
	}
}

func TestJudgeExhaustionHasNoDefaultWinner(t *testing.T) {
	broken := &scriptedAdapter{outcomes: []adapter.Outcome{{Stdout: "still no verdict"}}}
	inv := newInvoker(broken, &memRecorder{})

	res, err := inv.Judge(context.Background(), "p", testLabels)
	if res != nil {
		t.Fatalf("exhaustion must not produce a verdict, got %+v", res)
	}

	var cerr *council.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected council error, got %T", err)
	}
	if cerr.Kind != council.JudgePermanentlyFailed {
		t.Errorf("expected JudgePermanentlyFailed, got %s", cerr.Kind)
	}
	if cerr.Agent != "arbiter" || cerr.Attempts != 3 {
		t.Errorf("error must name the judge and attempt count: %+v", cerr)
	}
	if broken.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", broken.calls)
	}
}

func TestJudgeUnknownWinnerRejected(t *testing.T) {
	fabricated := strings.Replace(validVerdict, "Winner: Plan B", "Winner: Plan Z", 1)
	inv := newInvoker(&scriptedAdapter{outcomes: []adapter.Outcome{{Stdout: fabricated}}}, &memRecorder{})

	_, err := inv.Judge(context.Background(), "p", testLabels)

	var cerr *council.Error
	if !errors.As(err, &cerr) || cerr.Kind != council.JudgePermanentlyFailed {
		t.Fatalf("fabricated label must be rejected, got %v", err)
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"valid", validVerdict, true},
		{"no winner line", "## Final Plan\ndo things\n", false},
		{"winner mid-sentence only", "The Winner: Plan A approach is fine.\n## Final Plan\nx\n", false},
		{"bold winner accepted", "**Winner:** Plan A\n## Final Plan\nx\n", true},
		{"empty final plan", "Winner: Plan A\n## Final Plan\n   \n", false},
		{"missing final plan", "Winner: Plan A\n## Ranking\n1. Plan A\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVerdict(tt.raw, testLabels)
			if (err == nil) != tt.ok {
				t.Errorf("got err=%v, want ok=%v", err, tt.ok)
			}
		})
	}
}
