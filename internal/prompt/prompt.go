// Package prompt renders the planner and judge prompts. Pure functions, no
// side effects: the same inputs always produce the same text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mverikas/agora/internal/council"
)

// ForPlanner renders the prompt sent to every planner. Each planner receives
// the same task, the same intake answers, and the same section contract.
func ForPlanner(spec *council.TaskSpec, requiredSections []string) string {
	var sb strings.Builder

	sb.WriteString("## Task\n\n")
	sb.WriteString(strings.TrimSpace(spec.Task))
	sb.WriteString("\n\n")

	if len(spec.Intake) > 0 {
		sb.WriteString("## Clarifications\n\n")
		for _, ia := range spec.Intake {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n\n", strings.TrimSpace(ia.Question), strings.TrimSpace(ia.Answer))
		}
	}

	sb.WriteString("## Instructions\n\n")
	sb.WriteString("Produce a single, complete plan for the task above, in Markdown.\n")
	sb.WriteString("Your response must contain exactly these sections, in order:\n\n")
	for _, s := range requiredSections {
		fmt.Fprintf(&sb, "%s\n", s)
	}
	sb.WriteString("\nDo not include a preamble, your name, or any self-identification.\n")

	return sb.String()
}

// ForJudge renders the single judge prompt over the anonymized candidate set.
// Candidates are referenced only by label; agent names and models must never
// reach this function.
func ForJudge(spec *council.TaskSpec, plans []council.AnonymizedPlan) string {
	var sb strings.Builder

	sb.WriteString("## Task\n\n")
	sb.WriteString(strings.TrimSpace(spec.Task))
	sb.WriteString("\n\n")

	sb.WriteString("## Candidate Plans\n\n")
	for _, p := range plans {
		fmt.Fprintf(&sb, "### %s\n\n%s\n\n", p.Label, strings.TrimSpace(p.Content))
	}

	sb.WriteString("## Scoring Rubric\n\n")
	sb.WriteString(rubric)
	sb.WriteString("\n\n## Verdict Format\n\n")
	sb.WriteString("Respond in Markdown with exactly this structure:\n\n")
	sb.WriteString("Winner: <label of the best plan, e.g. Plan A>\n\n")
	sb.WriteString("## Scores\n\n")
	sb.WriteString("One line per candidate: `<label>: <score>/10 - <one-sentence justification>`\n\n")
	sb.WriteString("## Ranking\n\n")
	sb.WriteString("A numbered list of labels, best first.\n\n")
	sb.WriteString("## Final Plan\n\n")
	sb.WriteString("The full text of the recommended plan. Start from the winner and fold in\n")
	sb.WriteString("any clearly superior elements from other candidates.\n")

	return sb.String()
}

const rubric = `Evaluate every candidate against these criteria, equally weighted:
1. Completeness: does the plan cover the whole task, including edge cases?
2. Feasibility: can the steps actually be executed as written?
3. Risk awareness: are failure modes identified with mitigations?
4. Clarity: could a competent operator follow the plan without guessing?
Judge only what is written. Do not speculate about who or what produced a plan.`
