package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Run struct {
	ID          string     `json:"id"`
	Task        string     `json:"task"`
	Status      string     `json:"status"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	WinnerAgent string     `json:"winner_agent,omitempty"`
	ArtifactDir string     `json:"artifact_dir"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Attempt struct {
	RunID    string        `json:"run_id"`
	Agent    string        `json:"agent"`
	Role     string        `json:"role"`
	Attempt  int           `json:"attempt"`
	Valid    bool          `json:"valid"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"duration"`
	Reason   string        `json:"reason,omitempty"`
}

const runColumns = `id, task, status, COALESCE(state, ''), COALESCE(error, ''), COALESCE(winner_agent, ''), COALESCE(artifact_dir, ''), started_at, completed_at`

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	r := &Run{}
	if err := scanner.Scan(&r.ID, &r.Task, &r.Status, &r.State, &r.Error, &r.WinnerAgent, &r.ArtifactDir, &r.StartedAt, &r.CompletedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) CreateRun(r *Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, task, status, state, artifact_dir)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Task, r.Status, r.State, r.ArtifactDir)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRunState records a supervisor state transition.
func (s *Store) UpdateRunState(id, state string) error {
	_, err := s.db.Exec(`UPDATE runs SET state = ? WHERE id = ?`, state, id)
	return err
}

// FinishRun marks a run terminal. status is 'completed' or 'aborted'.
func (s *Store) FinishRun(id, status, state, runErr, winnerAgent string) error {
	_, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, state = ?, error = ?, winner_agent = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, state, runErr, winnerAgent, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) SaveAttempt(a *Attempt) error {
	_, err := s.db.Exec(`
		INSERT INTO attempts (run_id, agent, role, attempt, valid, exit_code, timed_out, duration_ms, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Agent, a.Role, a.Attempt, a.Valid, a.ExitCode, a.TimedOut, a.Duration.Milliseconds(), a.Reason)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(runID string) ([]Attempt, error) {
	rows, err := s.db.Query(`
		SELECT run_id, agent, role, attempt, valid, COALESCE(exit_code, 0), timed_out, COALESCE(duration_ms, 0), COALESCE(reason, '')
		FROM attempts WHERE run_id = ? ORDER BY agent, attempt`, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var durMS int64
		if err := rows.Scan(&a.RunID, &a.Agent, &a.Role, &a.Attempt, &a.Valid, &a.ExitCode, &a.TimedOut, &durMS, &a.Reason); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Duration = time.Duration(durMS) * time.Millisecond
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
