// Package artifact persists every stage of a run into a timestamped directory:
// rendered prompts, all submission attempts (failed ones included), the judge
// exchange, the final plan, and (last, access-restricted) the anonymization
// label table. Writes are append-only: one new file per artifact, never an
// overwrite, so a failed write cannot corrupt earlier artifacts.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mverikas/agora/internal/council"
	"github.com/mverikas/agora/internal/vault"
)

const (
	promptsDir     = "prompts"
	submissionsDir = "submissions"
	judgeDir       = "judge"
	privateDir     = "private"
)

type Store struct {
	dir   string
	vault *vault.Vault // nil: label table stored plaintext, 0600
}

// NewStore creates the run directory under baseDir and its stage
// subdirectories. v may be nil.
func NewStore(baseDir, runID string, v *vault.Vault) (*Store, error) {
	dir := filepath.Join(baseDir, fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), runID))

	for _, sub := range []string{promptsDir, submissionsDir, judgeDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, privateDir), 0o700); err != nil {
		return nil, fmt.Errorf("create private dir: %w", err)
	}

	return &Store{dir: dir, vault: v}, nil
}

// Dir returns the run directory path.
func (s *Store) Dir() string {
	return s.dir
}

// WritePrompt records the rendered prompt for one agent.
func (s *Store) WritePrompt(agent, content string) error {
	return s.writeNew(filepath.Join(promptsDir, agent+".md"), []byte(content), 0o644)
}

// WriteSubmission records one planner attempt, valid or not. The raw stdout
// is preserved untouched below a small audit header.
func (s *Store) WriteSubmission(sub council.PlanSubmission) error {
	name := fmt.Sprintf("%s-attempt-%d.md", sub.AgentName, sub.AttemptNumber)

	header := fmt.Sprintf(
		"<!-- agent=%s attempt=%d exit=%d timed_out=%t valid=%t reason=%q -->\n",
		sub.AgentName, sub.AttemptNumber, sub.ExitCode, sub.TimedOut, sub.Valid, sub.Reason,
	)
	return s.writeNew(filepath.Join(submissionsDir, name), []byte(header+sub.Stdout), 0o644)
}

// WriteJudgePrompt records the single prompt given to the judge.
func (s *Store) WriteJudgePrompt(content string) error {
	return s.writeNew(filepath.Join(judgeDir, "prompt.md"), []byte(content), 0o644)
}

// WriteJudgeAttempt records the judge's raw output for one attempt.
func (s *Store) WriteJudgeAttempt(attempt int, raw string) error {
	name := fmt.Sprintf("attempt-%d.md", attempt)
	return s.writeNew(filepath.Join(judgeDir, name), []byte(raw), 0o644)
}

// WriteJudgeResult records the parsed verdict.
func (s *Store) WriteJudgeResult(res council.JudgeResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal judge result: %w", err)
	}
	return s.writeNew(filepath.Join(judgeDir, "result.json"), data, 0o644)
}

// WriteFinalPlan records the synthesized plan. This is the one artifact whose
// write failure is fatal to the run.
func (s *Store) WriteFinalPlan(text string) error {
	return s.writeNew("final-plan.md", []byte(text), 0o644)
}

// WriteLabelTable records the label→agent mapping in the restricted section.
// It must be called only after judging has completed. With a vault the table
// is sealed; without one it is plaintext readable by the owner only.
func (s *Store) WriteLabelTable(table map[string]string) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal label table: %w", err)
	}

	name := filepath.Join(privateDir, "label-table.json")
	if s.vault != nil {
		sealed, err := s.vault.Seal(data)
		if err != nil {
			return fmt.Errorf("seal label table: %w", err)
		}
		data = sealed
		name = filepath.Join(privateDir, "label-table.enc")
	}
	return s.writeNew(name, data, 0o600)
}

// ReadLabelTable loads the restricted mapping back, for audit tooling.
func (s *Store) ReadLabelTable() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, privateDir, "label-table.enc"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read label table: %w", err)
		}
		data, err = os.ReadFile(filepath.Join(s.dir, privateDir, "label-table.json"))
		if err != nil {
			return nil, fmt.Errorf("read label table: %w", err)
		}
	} else {
		if s.vault == nil {
			return nil, fmt.Errorf("label table is sealed and no vault is configured")
		}
		data, err = s.vault.Open(data)
		if err != nil {
			return nil, fmt.Errorf("open label table: %w", err)
		}
	}

	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse label table: %w", err)
	}
	return table, nil
}

// writeNew creates a file that must not already exist. O_EXCL keeps the tree
// append-only even if two writers race on the same artifact name.
func (s *Store) writeNew(rel string, data []byte, perm os.FileMode) error {
	path := filepath.Join(s.dir, rel)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return council.NewError(council.ArtifactWriteFailed, fmt.Errorf("create %s: %w", rel, err))
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return council.NewError(council.ArtifactWriteFailed, fmt.Errorf("write %s: %w", rel, err))
	}
	if err := f.Close(); err != nil {
		return council.NewError(council.ArtifactWriteFailed, fmt.Errorf("close %s: %w", rel, err))
	}
	return nil
}
