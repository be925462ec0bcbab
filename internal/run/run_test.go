package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mverikas/agora/internal/adapter"
	"github.com/mverikas/agora/internal/config"
	"github.com/mverikas/agora/internal/council"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Run: config.RunConfig{
			AgentTimeout:     time.Second,
			Deadline:         time.Minute,
			MaxAttempts:      3,
			RequiredSections: []string{"## Approach", "## Plan", "## Risks"},
		},
		Artifacts: config.ArtifactsConfig{BaseDir: t.TempDir()},
	}
}

func testSpec() *council.TaskSpec {
	spec := &council.TaskSpec{Task: "Migrate the billing service to the new queue."}
	spec.Agents.Planners = []council.AgentConfig{
		{Name: "alpha", Kind: council.KindCustom, Command: "alpha-cli", PromptMode: council.PromptStdin},
		{Name: "beta", Kind: council.KindCustom, Command: "beta-cli", PromptMode: council.PromptStdin},
		{Name: "gamma", Kind: council.KindCustom, Command: "gamma-cli", PromptMode: council.PromptStdin},
	}
	spec.Agents.Judge = &council.AgentConfig{
		Name: "arbiter", Kind: council.KindCustom, Command: "judge-cli", PromptMode: council.PromptStdin,
	}
	return spec
}

func plan(marker string) string {
	return fmt.Sprintf("## Approach\n%s\n## Plan\n1. step\n## Risks\nnone\n", marker)
}

type staticAdapter struct {
	out   adapter.Outcome
	calls atomic.Int32
}

func (s *staticAdapter) Invoke(ctx context.Context, prompt string) adapter.Outcome {
	s.calls.Add(1)
	return s.out
}

// markerJudge picks as winner whichever candidate section contains the marker,
// so attribution can be asserted regardless of the shuffle.
type markerJudge struct {
	marker string
	calls  atomic.Int32
}

func (j *markerJudge) Invoke(ctx context.Context, prompt string) adapter.Outcome {
	j.calls.Add(1)

	label := ""
	current := ""
	for line := range strings.Lines(prompt) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "### Plan ") {
			current = strings.TrimPrefix(trimmed, "### ")
		}
		if current != "" && strings.Contains(line, j.marker) {
			label = current
			break
		}
	}
	if label == "" {
		return adapter.Outcome{Stdout: "marker not found in any candidate"}
	}

	raw := fmt.Sprintf("Winner: %s\n\n## Final Plan\nAdopt the winning plan as written.\n", label)
	return adapter.Outcome{Stdout: raw}
}

func newTestSupervisor(t *testing.T, cfg *config.Config, planners map[string]adapter.Adapter, judgeAdapter adapter.Adapter) *Supervisor {
	t.Helper()
	s, err := NewSupervisor(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	s.adapterFor = func(a council.AgentConfig) (adapter.Adapter, error) {
		if a.Name == "arbiter" {
			return judgeAdapter, nil
		}
		p, ok := planners[a.Name]
		if !ok {
			return nil, fmt.Errorf("no test adapter for %q", a.Name)
		}
		return p, nil
	}
	return s
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

func TestExecuteHappyPath(t *testing.T) {
	cfg := testConfig(t)
	planners := map[string]adapter.Adapter{
		"alpha": &staticAdapter{out: adapter.Outcome{Stdout: plan("marker-alpha")}},
		"beta":  &staticAdapter{out: adapter.Outcome{Stdout: plan("marker-beta")}},
		"gamma": &staticAdapter{out: adapter.Outcome{Stdout: plan("marker-gamma")}},
	}
	jw := &markerJudge{marker: "marker-beta"}
	s := newTestSupervisor(t, cfg, planners, jw)

	report := s.Execute(context.Background(), testSpec())
	if !report.Completed() {
		t.Fatalf("expected completed run, got state %s err %v", report.State, report.Err)
	}

	// The judge saw only labels; re-attribution must still land on beta.
	if report.WinnerAgent != "beta" {
		t.Errorf("expected winner agent beta, got %q (label %s)", report.WinnerAgent, report.WinnerLabel)
	}
	if !strings.HasPrefix(report.WinnerLabel, "Plan ") {
		t.Errorf("unexpected winner label %q", report.WinnerLabel)
	}
	if jw.calls.Load() != 1 {
		t.Errorf("judge must be invoked exactly once, got %d", jw.calls.Load())
	}

	if n := countFiles(t, filepath.Join(report.ArtifactDir, "prompts")); n != 3 {
		t.Errorf("expected 3 prompt artifacts, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(report.ArtifactDir, "judge", "prompt.md")); err != nil {
		t.Errorf("judge prompt missing: %v", err)
	}
	if n := countFiles(t, filepath.Join(report.ArtifactDir, "submissions")); n != 3 {
		t.Errorf("expected 3 submission artifacts, got %d", n)
	}

	finalPlan, err := os.ReadFile(filepath.Join(report.ArtifactDir, "final-plan.md"))
	if err != nil {
		t.Fatalf("final plan missing: %v", err)
	}
	if !strings.Contains(string(finalPlan), "Adopt the winning plan") {
		t.Errorf("unexpected final plan content: %q", finalPlan)
	}

	if _, err := os.Stat(filepath.Join(report.ArtifactDir, "judge", "result.json")); err != nil {
		t.Errorf("judge result missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(report.ArtifactDir, "private", "label-table.json")); err != nil {
		t.Errorf("label table missing: %v", err)
	}
}

func TestExecuteFailFastSkipsJudging(t *testing.T) {
	cfg := testConfig(t)
	planners := map[string]adapter.Adapter{
		"alpha": &staticAdapter{out: adapter.Outcome{Stdout: plan("marker-alpha")}},
		"beta":  &staticAdapter{out: adapter.Outcome{Stdout: "not a plan at all"}},
		"gamma": &staticAdapter{out: adapter.Outcome{Stdout: plan("marker-gamma")}},
	}
	jw := &markerJudge{marker: "marker-alpha"}
	s := newTestSupervisor(t, cfg, planners, jw)

	report := s.Execute(context.Background(), testSpec())
	if report.Completed() {
		t.Fatal("expected aborted run")
	}

	var cerr *council.Error
	if !errors.As(report.Err, &cerr) {
		t.Fatalf("expected council error, got %T", report.Err)
	}
	if cerr.Kind != council.AgentPermanentlyFailed || cerr.Agent != "beta" {
		t.Errorf("abort cause must name the failed planner: %+v", cerr)
	}

	if jw.calls.Load() != 0 {
		t.Errorf("judge must not be invoked after fail-fast, got %d calls", jw.calls.Load())
	}
	if n := countFiles(t, filepath.Join(report.ArtifactDir, "judge")); n != 0 {
		t.Errorf("expected no judge artifacts, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(report.ArtifactDir, "final-plan.md")); !os.IsNotExist(err) {
		t.Errorf("final plan must not exist on abort")
	}
	if _, err := os.Stat(filepath.Join(report.ArtifactDir, "private", "label-table.json")); !os.IsNotExist(err) {
		t.Errorf("label table must not exist on abort")
	}

	// Failed attempts are still recorded for audit.
	if n := countFiles(t, filepath.Join(report.ArtifactDir, "submissions")); n < 3 {
		t.Errorf("expected all attempts recorded, got %d files", n)
	}
}

type blockingAdapter struct{}

func (b *blockingAdapter) Invoke(ctx context.Context, prompt string) adapter.Outcome {
	<-ctx.Done()
	return adapter.Outcome{TimedOut: true, ExitCode: -1}
}

func TestExecuteRunDeadline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.Deadline = 50 * time.Millisecond
	cfg.Run.AgentTimeout = time.Minute

	planners := map[string]adapter.Adapter{
		"alpha": &blockingAdapter{},
		"beta":  &blockingAdapter{},
		"gamma": &blockingAdapter{},
	}
	s := newTestSupervisor(t, cfg, planners, &markerJudge{marker: "never"})

	report := s.Execute(context.Background(), testSpec())
	if report.Completed() {
		t.Fatal("expected aborted run")
	}

	var cerr *council.Error
	if !errors.As(report.Err, &cerr) || cerr.Kind != council.RunTimedOut {
		t.Fatalf("expected RunTimedOut, got %v", report.Err)
	}
}

func TestExecuteInvalidSpec(t *testing.T) {
	cfg := testConfig(t)
	s := newTestSupervisor(t, cfg, nil, &markerJudge{})

	spec := &council.TaskSpec{Task: "something"}
	report := s.Execute(context.Background(), spec)
	if report.Completed() {
		t.Fatal("expected aborted run")
	}

	var cerr *council.Error
	if !errors.As(report.Err, &cerr) || cerr.Kind != council.SpecInvalid {
		t.Fatalf("expected SpecInvalid, got %v", report.Err)
	}
	if report.ArtifactDir != "" {
		t.Errorf("no artifacts may be created for an invalid spec, got %q", report.ArtifactDir)
	}
}
