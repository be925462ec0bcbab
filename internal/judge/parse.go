package judge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mverikas/agora/internal/council"
)

var (
	winnerRe  = regexp.MustCompile(`(?m)^[#*\s]*Winner[:*\s]+(Plan [A-Z])`)
	rankingRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s*\**(Plan [A-Z])`)
	scoreRe   = regexp.MustCompile(`(?m)^\s*[-*]?\s*` + "`?" + `(Plan [A-Z])` + "`?" + `\s*[:-]\s*(.+)$`)
)

// ParseVerdict extracts the structured verdict from the judge's raw Markdown.
// Structural validity requires a winner naming a known label and a non-empty
// final plan; scores and ranking are parsed when present.
func ParseVerdict(raw string, labels []string) (*council.JudgeResult, error) {
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}

	m := winnerRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("no winner line found")
	}
	winner := m[1]
	if !known[winner] {
		return nil, fmt.Errorf("winner %q is not a known label", winner)
	}

	finalPlan := section(raw, "## Final Plan")
	if strings.TrimSpace(finalPlan) == "" {
		return nil, fmt.Errorf("final plan section is empty or missing")
	}

	res := &council.JudgeResult{
		Winner:        winner,
		FinalPlanText: strings.TrimSpace(finalPlan),
		RawOutput:     raw,
	}

	if rankingBody := section(raw, "## Ranking"); rankingBody != "" {
		for _, rm := range rankingRe.FindAllStringSubmatch(rankingBody, -1) {
			if known[rm[1]] {
				res.Ranking = append(res.Ranking, rm[1])
			}
		}
	}

	if scoresBody := section(raw, "## Scores"); scoresBody != "" {
		scores := make(map[string]string)
		for _, sm := range scoreRe.FindAllStringSubmatch(scoresBody, -1) {
			if known[sm[1]] {
				scores[sm[1]] = strings.TrimSpace(sm[2])
			}
		}
		if len(scores) > 0 {
			res.Scores = scores
		}
	}

	return res, nil
}

// section returns the body between a `## ` header line and the next one.
func section(raw, header string) string {
	var body strings.Builder
	in := false
	for line := range strings.Lines(raw) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, header) {
			in = true
			continue
		}
		if in && strings.HasPrefix(trimmed, "## ") {
			break
		}
		if in {
			body.WriteString(line)
		}
	}
	return body.String()
}
