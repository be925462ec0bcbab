// Package run drives one council run end to end through a fixed state
// machine: Idle, Dispatching, Collecting, Anonymizing, Judging, Finalizing,
// then Completed or Aborted. Every stage must succeed for the next to start;
// any failure aborts the whole run.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mverikas/agora/internal/adapter"
	"github.com/mverikas/agora/internal/anonymize"
	"github.com/mverikas/agora/internal/artifact"
	"github.com/mverikas/agora/internal/collector"
	"github.com/mverikas/agora/internal/config"
	"github.com/mverikas/agora/internal/council"
	"github.com/mverikas/agora/internal/dispatch"
	"github.com/mverikas/agora/internal/judge"
	"github.com/mverikas/agora/internal/notify"
	"github.com/mverikas/agora/internal/prompt"
	"github.com/mverikas/agora/internal/registry"
	"github.com/mverikas/agora/internal/store"
	"github.com/mverikas/agora/internal/vault"
)

type State string

const (
	StateIdle        State = "idle"
	StateDispatching State = "dispatching"
	StateCollecting  State = "collecting"
	StateAnonymizing State = "anonymizing"
	StateJudging     State = "judging"
	StateFinalizing  State = "finalizing"
	StateCompleted   State = "completed"
	StateAborted     State = "aborted"
)

// Report is the terminal summary of a run.
type Report struct {
	RunID       string
	State       State
	WinnerAgent string
	WinnerLabel string
	ArtifactDir string
	Err         error
}

// Completed reports whether the run reached the terminal success state.
func (r *Report) Completed() bool {
	return r.State == StateCompleted
}

type Supervisor struct {
	cfg      *config.Config
	ledger   *store.Store     // nil: no ledger indexing
	vault    *vault.Vault     // nil: label table stored plaintext
	notifier *notify.Notifier // nil: no notifications

	// adapterFor is swappable in tests; production uses adapter.ForConfig.
	adapterFor func(council.AgentConfig) (adapter.Adapter, error)
	anonymizer *anonymize.Anonymizer
}

func NewSupervisor(cfg *config.Config, ledger *store.Store, v *vault.Vault, notifier *notify.Notifier) (*Supervisor, error) {
	anon, err := anonymize.New()
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		cfg:        cfg,
		ledger:     ledger,
		vault:      v,
		notifier:   notifier,
		adapterFor: adapter.ForConfig,
		anonymizer: anon,
	}, nil
}

// Execute runs the whole pipeline for one task spec. The returned report is
// always non-nil; report.Err carries the abort cause when the run fails.
func (s *Supervisor) Execute(ctx context.Context, spec *council.TaskSpec) *Report {
	report := &Report{RunID: uuid.NewString(), State: StateIdle}

	// Validation happens before any process is spawned or artifact written.
	reg, err := registry.New(spec)
	if err != nil {
		return s.abort(report, err)
	}

	assignments, err := s.assignments(reg, spec)
	if err != nil {
		return s.abort(report, err)
	}

	arts, err := artifact.NewStore(s.cfg.Artifacts.BaseDir, report.RunID, s.vault)
	if err != nil {
		return s.abort(report, err)
	}
	report.ArtifactDir = arts.Dir()

	if s.ledger != nil {
		if err := s.ledger.CreateRun(&store.Run{
			ID:          report.RunID,
			Task:        spec.Task,
			Status:      "running",
			State:       string(StateIdle),
			ArtifactDir: arts.Dir(),
		}); err != nil {
			slog.Error("failed to index run in ledger", "run", report.RunID, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Run.Deadline)
	defer cancel()

	slog.Info("run started",
		"run", report.RunID,
		"planners", len(reg.Planners()),
		"judge", reg.Judge().Name,
		"deadline", s.cfg.Run.Deadline,
		"artifacts", arts.Dir())

	s.transition(report, StateDispatching)
	for _, a := range assignments {
		if err := arts.WritePrompt(a.Agent.Name, a.Prompt); err != nil {
			slog.Error("failed to persist prompt artifact", "agent", a.Agent.Name, "error", err)
		}
	}

	s.transition(report, StateCollecting)
	d := dispatch.New(s.cfg.Run.AgentTimeout, s.cfg.Run.Concurrency)
	coll := collector.New(d, arts, s.ledger, report.RunID, s.cfg.Run.MaxAttempts, s.cfg.Run.RequiredSections)
	subs, err := coll.Collect(ctx, assignments)
	if err != nil {
		return s.abort(report, err)
	}

	s.transition(report, StateAnonymizing)
	plans, mapping := s.anonymizer.Anonymize(subs, reg.Planners())
	labels := make([]string, len(plans))
	for i, p := range plans {
		labels[i] = p.Label
	}

	s.transition(report, StateJudging)
	judgeAdapter, err := s.adapterFor(reg.Judge())
	if err != nil {
		return s.abort(report, council.NewError(council.SpecInvalid, err))
	}
	inv := judge.New(reg.Judge(), judgeAdapter, arts, s.ledger, report.RunID, s.cfg.Run.AgentTimeout, s.cfg.Run.MaxAttempts)
	verdict, err := inv.Judge(ctx, prompt.ForJudge(spec, plans), labels)
	if err != nil {
		return s.abort(report, err)
	}

	s.transition(report, StateFinalizing)
	winnerAgent, ok := mapping.Resolve(verdict.Winner)
	if !ok {
		// ParseVerdict only admits known labels; a miss here is a bug.
		return s.abort(report, council.NewError(council.JudgeInvalid,
			fmt.Errorf("verdict winner %q has no mapping entry", verdict.Winner)))
	}
	report.WinnerLabel = verdict.Winner
	report.WinnerAgent = winnerAgent

	if err := arts.WriteJudgeResult(*verdict); err != nil {
		slog.Error("failed to persist judge result", "error", err)
	}
	if err := arts.WriteFinalPlan(verdict.FinalPlanText); err != nil {
		return s.abort(report, err)
	}

	// The label table is written only after judging, so no observer of the
	// artifact tree can correlate labels with agents mid-run.
	if err := arts.WriteLabelTable(mapping.Table()); err != nil {
		slog.Error("failed to persist label table", "error", err)
	}

	report.State = StateCompleted
	if s.ledger != nil {
		if err := s.ledger.FinishRun(report.RunID, "completed", string(StateCompleted), "", winnerAgent); err != nil {
			slog.Error("failed to finalize run in ledger", "run", report.RunID, "error", err)
		}
	}

	slog.Info("run completed", "run", report.RunID, "winner_label", verdict.Winner, "winner_agent", winnerAgent)
	s.notifier.Notify(context.WithoutCancel(ctx), fmt.Sprintf(
		"Council run %s completed.\nWinner: %s (%s)\nArtifacts: %s",
		report.RunID, verdict.Winner, winnerAgent, arts.Dir()))

	return report
}

// assignments renders the shared planner prompt and binds each planner to its
// adapter. All planners receive identical prompt text.
func (s *Supervisor) assignments(reg *registry.Registry, spec *council.TaskSpec) ([]dispatch.Assignment, error) {
	text := prompt.ForPlanner(spec, s.cfg.Run.RequiredSections)

	assignments := make([]dispatch.Assignment, 0, len(reg.Planners()))
	for _, p := range reg.Planners() {
		a, err := s.adapterFor(p)
		if err != nil {
			return nil, council.NewError(council.SpecInvalid, err)
		}
		assignments = append(assignments, dispatch.Assignment{Agent: p, Adapter: a, Prompt: text})
	}
	return assignments, nil
}

func (s *Supervisor) transition(report *Report, next State) {
	slog.Info("run state", "run", report.RunID, "from", report.State, "to", next)
	report.State = next
	if s.ledger != nil {
		if err := s.ledger.UpdateRunState(report.RunID, string(next)); err != nil {
			slog.Error("failed to record state transition", "run", report.RunID, "error", err)
		}
	}
}

func (s *Supervisor) abort(report *Report, cause error) *Report {
	report.Err = cause
	report.State = StateAborted

	var cerr *council.Error
	kind := "unknown"
	if errors.As(cause, &cerr) {
		kind = string(cerr.Kind)
	}
	slog.Error("run aborted", "run", report.RunID, "kind", kind, "error", cause)

	if s.ledger != nil {
		if err := s.ledger.FinishRun(report.RunID, "aborted", string(StateAborted), cause.Error(), ""); err != nil {
			slog.Error("failed to finalize run in ledger", "run", report.RunID, "error", err)
		}
	}

	notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.notifier.Notify(notifyCtx, fmt.Sprintf("Council run %s aborted: %v", report.RunID, cause))

	return report
}
