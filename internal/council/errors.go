package council

import "fmt"

// ErrKind classifies run failures. Retryable kinds never surface to the
// caller; permanent kinds abort the run immediately.
type ErrKind string

const (
	SpecInvalid            ErrKind = "spec_invalid"
	AgentSpawnFailed       ErrKind = "agent_spawn_failed"
	AgentTimeout           ErrKind = "agent_timeout"
	AgentOutputInvalid     ErrKind = "agent_output_invalid"
	AgentPermanentlyFailed ErrKind = "agent_permanently_failed"
	JudgeInvalid           ErrKind = "judge_invalid"
	JudgePermanentlyFailed ErrKind = "judge_permanently_failed"
	RunTimedOut            ErrKind = "run_timed_out"
	ArtifactWriteFailed    ErrKind = "artifact_write_failed"
)

// Error is the run-level error surfaced on abort. Agent and Attempts identify
// which council member failed and after how many tries, so the operator can
// fix config or credentials and re-run.
type Error struct {
	Kind     ErrKind
	Agent    string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Agent != "" && e.Attempts > 0:
		return fmt.Sprintf("%s: agent %q failed after %d attempts: %v", e.Kind, e.Agent, e.Attempts, e.Err)
	case e.Agent != "":
		return fmt.Sprintf("%s: agent %q: %v", e.Kind, e.Agent, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a run error with no agent attribution.
func NewError(kind ErrKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// NewAgentError builds a run error attributed to one agent.
func NewAgentError(kind ErrKind, agent string, attempts int, err error) *Error {
	return &Error{Kind: kind, Agent: agent, Attempts: attempts, Err: err}
}
