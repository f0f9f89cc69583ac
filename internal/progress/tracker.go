// Package progress records the history of import runs: which importers
// ran, the states they went through and what they changed.
package progress

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// State of one importer within a run.
type State string

const (
	StateNotStarted State = "not_started"
	StateDeleting   State = "deleting"
	StateRestarting State = "restarting"
	StateParsing    State = "parsing"
	StateInserting  State = "inserting"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

// next lists the states reachable from each state. Any state before the
// commit may fail.
var next = map[State][]State{
	StateNotStarted: {StateDeleting, StateParsing, StateFailed},
	StateDeleting:   {StateRestarting, StateFailed},
	StateRestarting: {StateParsing, StateFailed},
	StateParsing:    {StateInserting, StateFailed},
	StateInserting:  {StateCommitted, StateFailed},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(next[s]) == 0
}

// CanMove reports whether an importer in state s may move to to.
func (s State) CanMove(to State) bool {
	for _, allowed := range next[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of the import pipeline.
type Run struct {
	ID         string     `json:"id"`
	Importers  []string   `json:"importers"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Steps      []*Step    `json:"steps,omitempty"`
}

// Step is one importer within a run.
type Step struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Importer  string    `json:"importer"`
	Source    string    `json:"source,omitempty"`
	State     State     `json:"state"`
	History   []State   `json:"history,omitempty"`
	Removed   int64     `json:"removed"`
	Created   int64     `json:"created"`
	Updated   int64     `json:"updated"`
	Skipped   int64     `json:"skipped"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker persists runs and steps. Writes happen only between importers:
// while an importer holds the import transaction its transitions are kept
// in memory, and the step row is written once the transaction is over.
type Tracker struct {
	db  *sql.DB
	run *Run
}

// NewTracker creates a new progress tracker
func NewTracker(db *sql.DB) (*Tracker, error) {
	t := &Tracker{db: db}

	if err := t.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create progress tables: %w", err)
	}

	return t, nil
}

// createTables creates the necessary database tables
func (t *Tracker) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS import_runs (
			run_id TEXT PRIMARY KEY,
			importers TEXT,
			status TEXT NOT NULL,
			error TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS import_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			importer TEXT NOT NULL,
			source TEXT,
			state TEXT NOT NULL,
			history TEXT,
			removed INTEGER DEFAULT 0,
			created INTEGER DEFAULT 0,
			updated INTEGER DEFAULT 0,
			skipped INTEGER DEFAULT 0,
			error TEXT,
			started_at TIMESTAMP,
			updated_at TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES import_runs(run_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_steps_run ON import_steps(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON import_runs(started_at)`,
	}

	for _, query := range queries {
		if _, err := t.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// StartRun records the start of a run over the given importers.
func (t *Tracker) StartRun(importers []string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Importers: importers,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}

	_, err := t.db.Exec(`INSERT INTO import_runs (run_id, importers, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, strings.Join(importers, ","), run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	t.run = run
	log.Debug("import run started", "run", run.ID, "importers", len(importers))
	return run, nil
}

// CurrentRun returns the run being tracked, if any.
func (t *Tracker) CurrentRun() *Run {
	return t.run
}

// StartStep records that importer is about to run.
func (t *Tracker) StartStep(importer, source string) (*Step, error) {
	if t.run == nil {
		return nil, fmt.Errorf("no run started")
	}
	now := time.Now()
	step := &Step{
		RunID:     t.run.ID,
		Importer:  importer,
		Source:    source,
		State:     StateNotStarted,
		History:   []State{StateNotStarted},
		StartedAt: now,
		UpdatedAt: now,
	}

	result, err := t.db.Exec(`INSERT INTO import_steps (run_id, importer, source, state, history, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		step.RunID, step.Importer, step.Source, step.State, joinStates(step.History), step.StartedAt, step.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record step: %w", err)
	}
	if step.ID, err = result.LastInsertId(); err != nil {
		return nil, err
	}

	t.run.Steps = append(t.run.Steps, step)
	return step, nil
}

// Transition moves step to state, in memory only.
func (t *Tracker) Transition(step *Step, state State) error {
	if !step.State.CanMove(state) {
		return fmt.Errorf("importer %s cannot move from %s to %s", step.Importer, step.State, state)
	}
	step.State = state
	step.History = append(step.History, state)
	step.UpdatedAt = time.Now()
	log.Debug("importer state", "importer", step.Importer, "state", state)
	return nil
}

// FinishStep moves step to its terminal state, committed when err is nil
// and failed otherwise, and writes it.
func (t *Tracker) FinishStep(step *Step, err error) error {
	final := StateCommitted
	if err != nil {
		final = StateFailed
		step.Error = err.Error()
	}
	if terr := t.Transition(step, final); terr != nil {
		return terr
	}

	_, dberr := t.db.Exec(`UPDATE import_steps
		SET state = ?, history = ?, removed = ?, created = ?, updated = ?, skipped = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		step.State, joinStates(step.History), step.Removed, step.Created, step.Updated, step.Skipped,
		nullString(step.Error), step.UpdatedAt, step.ID)
	return dberr
}

// FinishRun marks the current run completed, or failed when err is set.
func (t *Tracker) FinishRun(err error) error {
	if t.run == nil {
		return nil
	}
	now := time.Now()
	t.run.FinishedAt = &now
	t.run.Status = RunCompleted
	if err != nil {
		t.run.Status = RunFailed
		t.run.Error = err.Error()
	}

	_, dberr := t.db.Exec(`UPDATE import_runs SET status = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		t.run.Status, nullString(t.run.Error), now, t.run.ID)
	log.Debug("import run finished", "run", t.run.ID, "status", t.run.Status)
	return dberr
}

// GetRun loads a run with its steps. It returns nil when there is no such run.
func (t *Tracker) GetRun(id string) (*Run, error) {
	runs, err := t.queryRuns(`WHERE run_id = ?`, id)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	run := runs[0]
	if run.Steps, err = t.steps(run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first, with their steps.
func (t *Tracker) RecentRuns(limit int) ([]*Run, error) {
	runs, err := t.queryRuns(`ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.Steps, err = t.steps(run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// LastCommitted returns, per importer, the time of its latest committed step.
func (t *Tracker) LastCommitted() (map[string]time.Time, error) {
	rows, err := t.db.Query(`SELECT importer, MAX(updated_at) FROM import_steps WHERE state = ? GROUP BY importer`, StateCommitted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	last := make(map[string]time.Time)
	for rows.Next() {
		var (
			importer string
			at       sql.NullString
		)
		if err := rows.Scan(&importer, &at); err != nil {
			return nil, err
		}
		if ts, ok := parseTime(at.String); ok {
			last[importer] = ts
		}
	}
	return last, rows.Err()
}

// CleanupOldRuns removes finished runs older than the given age and
// returns how many were removed.
func (t *Tracker) CleanupOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	_, err := t.db.Exec(`DELETE FROM import_steps
		WHERE run_id IN (
			SELECT run_id FROM import_runs
			WHERE status != ? AND started_at < ?
		)`, RunRunning, cutoff)
	if err != nil {
		return 0, err
	}

	res, err := t.db.Exec(`DELETE FROM import_runs WHERE status != ? AND started_at < ?`, RunRunning, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Helper methods

func (t *Tracker) queryRuns(clause string, args ...any) ([]*Run, error) {
	rows, err := t.db.Query(`SELECT run_id, COALESCE(importers, ''), status, COALESCE(error, ''), started_at, finished_at
		FROM import_runs `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run       Run
			importers string
			finished  sql.NullTime
		)
		if err := rows.Scan(&run.ID, &importers, &run.Status, &run.Error, &run.StartedAt, &finished); err != nil {
			return nil, err
		}
		if importers != "" {
			run.Importers = strings.Split(importers, ",")
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (t *Tracker) steps(runID string) ([]*Step, error) {
	rows, err := t.db.Query(`SELECT id, run_id, importer, COALESCE(source, ''), state, COALESCE(history, ''),
			removed, created, updated, skipped, COALESCE(error, ''), started_at, updated_at
		FROM import_steps WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*Step
	for rows.Next() {
		var (
			s       Step
			history string
		)
		if err := rows.Scan(&s.ID, &s.RunID, &s.Importer, &s.Source, &s.State, &history,
			&s.Removed, &s.Created, &s.Updated, &s.Skipped, &s.Error, &s.StartedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.History = splitStates(history)
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

func joinStates(states []State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func splitStates(s string) []State {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	states := make([]State, len(parts))
	for i, p := range parts {
		states[i] = State(p)
	}
	return states
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseTime reads timestamps returned by aggregates, which the driver
// hands back as text.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
