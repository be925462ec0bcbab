// Package anonymize de-biases the candidate set before judging: it scrubs
// planner identity markers from each submission, shuffles the set with a
// cryptographically seeded permutation, and assigns synthetic labels, keeping
// the reverse mapping private.
package anonymize

import (
	"crypto/rand"
	"fmt"
	mrand "math/rand/v2"
	"regexp"
	"strings"

	"github.com/mverikas/agora/internal/council"
)

const redacted = "[redacted]"

// Mapping is the private label→agent table. It is held only by the run
// supervisor and the artifact store's restricted section; it must never be
// passed to the judge invoker.
type Mapping struct {
	labelToAgent map[string]string
}

// Resolve returns the agent name behind a label.
func (m *Mapping) Resolve(label string) (string, bool) {
	agent, ok := m.labelToAgent[label]
	return agent, ok
}

// Table returns a copy of the mapping for the restricted artifact.
func (m *Mapping) Table() map[string]string {
	out := make(map[string]string, len(m.labelToAgent))
	for k, v := range m.labelToAgent {
		out[k] = v
	}
	return out
}

type Anonymizer struct {
	rng *mrand.Rand
}

// New seeds the permutation source from crypto/rand.
func New() (*Anonymizer, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed rng: %w", err)
	}
	return NewSeeded(seed), nil
}

// NewSeeded builds an anonymizer with a fixed seed, for reproducible tests.
func NewSeeded(seed [32]byte) *Anonymizer {
	return &Anonymizer{rng: mrand.New(mrand.NewChaCha8(seed))}
}

// Anonymize scrubs and shuffles the valid submissions. Labels are assigned in
// post-permutation order, so "Plan A" carries no correlation with dispatch
// order, arrival order, or agent name. roster supplies the name/model strings
// to scrub from every candidate, not just its own.
func (a *Anonymizer) Anonymize(subs []council.PlanSubmission, roster []council.AgentConfig) ([]council.AnonymizedPlan, *Mapping) {
	scrubber := newScrubber(roster)

	perm := a.rng.Perm(len(subs))

	plans := make([]council.AnonymizedPlan, len(subs))
	mapping := &Mapping{labelToAgent: make(map[string]string, len(subs))}

	for pos, idx := range perm {
		label := Label(pos)
		plans[pos] = council.AnonymizedPlan{
			Label:   label,
			Content: scrubber.scrub(subs[idx].Stdout),
		}
		mapping.labelToAgent[label] = subs[idx].AgentName
	}
	return plans, mapping
}

// Label returns the fixed alphabetic label for a position: "Plan A", "Plan B", ...
func Label(i int) string {
	return fmt.Sprintf("Plan %c", 'A'+i)
}

type scrubber struct {
	patterns []*regexp.Regexp
}

// newScrubber compiles one case-insensitive pattern per configured name and
// model string. The guarantee is the absence of verbatim occurrences of those
// strings, not general PII removal.
func newScrubber(roster []council.AgentConfig) *scrubber {
	seen := make(map[string]bool)
	var patterns []*regexp.Regexp
	for _, agent := range roster {
		for _, token := range []string{agent.Name, agent.Model} {
			token = strings.TrimSpace(token)
			if token == "" || seen[token] {
				continue
			}
			seen[token] = true
			patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(token)))
		}
	}
	return &scrubber{patterns: patterns}
}

func (s *scrubber) scrub(content string) string {
	for _, p := range s.patterns {
		content = p.ReplaceAllString(content, redacted)
	}
	return content
}
