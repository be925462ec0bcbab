// Package council defines the shared domain types for a planning council run:
// the task specification, agent roster entries, planner submissions, the
// anonymized candidate set, and the judge's verdict.
package council

// Kind selects the adapter used to invoke an agent.
type Kind string

const (
	KindClaude Kind = "claude"
	KindCodex  Kind = "codex"
	KindGemini Kind = "gemini"
	KindCustom Kind = "custom"
)

// PromptMode says how a custom adapter receives its prompt.
type PromptMode string

const (
	PromptStdin PromptMode = "stdin"
	PromptArg   PromptMode = "arg"
)

// AgentConfig describes one council member. Name must be unique within a run.
// Command and PromptMode are required only for the custom kind.
type AgentConfig struct {
	Name       string     `yaml:"name" json:"name"`
	Kind       Kind       `yaml:"kind" json:"kind"`
	Model      string     `yaml:"model" json:"model"`
	PromptMode PromptMode `yaml:"prompt_mode,omitempty" json:"prompt_mode,omitempty"`
	Command    string     `yaml:"command,omitempty" json:"command,omitempty"`
	ExtraArgs  []string   `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
}

// IntakeAnswer carries one clarifying question the operator answered before
// the run. Answers are folded into every planner prompt.
type IntakeAnswer struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// TaskSpec is the immutable input of one run.
type TaskSpec struct {
	Task   string `yaml:"task" json:"task"`
	Agents struct {
		Planners []AgentConfig `yaml:"planners" json:"planners"`
		Judge    *AgentConfig  `yaml:"judge,omitempty" json:"judge,omitempty"`
	} `yaml:"agents" json:"agents"`
	Intake []IntakeAnswer `yaml:"intake,omitempty" json:"intake,omitempty"`
}

// PlanSubmission is one planner attempt. A new submission supersedes the
// previous one on retry; the last submission per agent is terminal.
type PlanSubmission struct {
	AgentName     string `json:"agent_name"`
	AttemptNumber int    `json:"attempt_number"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr,omitempty"`
	ExitCode      int    `json:"exit_code"`
	TimedOut      bool   `json:"timed_out"`
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
}

// AnonymizedPlan is a candidate stripped of its origin. It never holds the
// producing agent's name; the reverse mapping lives only in anonymize.Mapping.
type AnonymizedPlan struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// JudgeResult is the judge's verdict over the anonymized set. All references
// are by label; re-attribution happens after judging, in the supervisor.
type JudgeResult struct {
	Winner        string            `json:"winner"`
	Ranking       []string          `json:"ranking,omitempty"`
	Scores        map[string]string `json:"scores,omitempty"`
	FinalPlanText string            `json:"final_plan_text"`
	RawOutput     string            `json:"-"`
}
