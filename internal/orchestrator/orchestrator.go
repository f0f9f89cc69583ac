// Package orchestrator runs importers in their registry order, each in its
// own transaction, and records every run with the progress tracker.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nishad/ptmdb/internal/database"
	"github.com/nishad/ptmdb/internal/errors"
	"github.com/nishad/ptmdb/internal/importer"
	"github.com/nishad/ptmdb/internal/progress"
	"github.com/nishad/ptmdb/internal/resolver"
)

// Options configures an Orchestrator.
type Options struct {
	// ReloadCache drops every cached entity at the start of each run.
	ReloadCache bool
	// Progress receives per-file progress of the running importer.
	Progress importer.ProgressFunc
}

// Orchestrator owns the resolver shared by the importers of a run.
type Orchestrator struct {
	db       *database.DB
	entries  []importer.Entry
	resolver *resolver.Resolver
	tracker  *progress.Tracker
	opts     Options
}

// Outcome is what one importer did in a run.
type Outcome struct {
	Name  string
	State progress.State
	Stats importer.Stats
	Err   error
	// Integrity is set when the importer was rolled back because an
	// insert broke a constraint.
	Integrity bool
}

// Report summarises a run.
type Report struct {
	RunID    string
	Outcomes []*Outcome
}

// New creates an orchestrator over the given registry.
func New(db *database.DB, entries []importer.Entry, opts Options) (*Orchestrator, error) {
	tracker, err := progress.NewTracker(db.DB)
	if err != nil {
		return nil, errors.E(errors.Op("orchestrator.New"), errors.KindDatabase, err)
	}
	return &Orchestrator{
		db:       db,
		entries:  entries,
		resolver: resolver.New(),
		tracker:  tracker,
		opts:     opts,
	}, nil
}

// Tracker returns the run history.
func (o *Orchestrator) Tracker() *progress.Tracker {
	return o.tracker
}

// Resolver returns the entity cache shared by the importers.
func (o *Orchestrator) Resolver() *resolver.Resolver {
	return o.resolver
}

// Select returns the named entries in registry order, or all of them when
// no name is given.
func (o *Orchestrator) Select(names ...string) ([]importer.Entry, error) {
	if len(names) == 0 {
		return o.entries, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := importer.Lookup(o.entries, name); !ok {
			return nil, errors.E(errors.Op("orchestrator.Select"), errors.KindConfig,
				fmt.Sprintf("unknown importer %q", name))
		}
		wanted[name] = true
	}
	var selected []importer.Entry
	for _, e := range o.entries {
		if wanted[e.Name] {
			selected = append(selected, e)
		}
	}
	return selected, nil
}

// Run executes the named importers, or all of them. The first failing
// importer is rolled back and ends the run; importers committed before it
// stay.
func (o *Orchestrator) Run(ctx context.Context, names ...string) (*Report, error) {
	selected, err := o.Select(names...)
	if err != nil {
		return nil, err
	}
	if o.opts.ReloadCache {
		o.resolver.Reset()
	}

	selectedNames := make([]string, len(selected))
	for i, e := range selected {
		selectedNames[i] = e.Name
	}
	run, err := o.tracker.StartRun(selectedNames)
	if err != nil {
		return nil, err
	}
	log.Info("import started", "run", run.ID, "importers", strings.Join(selectedNames, ","))

	report := &Report{RunID: run.ID}
	var runErr error
	for _, e := range selected {
		outcome, err := o.runOne(ctx, e)
		report.Outcomes = append(report.Outcomes, outcome)
		if err != nil {
			runErr = errors.WrapMsg("orchestrator.Run", e.Name, err)
			break
		}
	}

	if err := o.tracker.FinishRun(runErr); err != nil {
		log.Warn("failed to record run result", "run", run.ID, "err", err)
	}
	return report, runErr
}

func (o *Orchestrator) runOne(ctx context.Context, e importer.Entry) (*Outcome, error) {
	step, err := o.tracker.StartStep(e.Name, e.Source)
	if err != nil {
		return &Outcome{Name: e.Name, State: progress.StateNotStarted, Err: err}, err
	}

	run := importer.NewRun(e.Name, e.Source, o.resolver, nil)
	run.Progress = o.opts.Progress

	err = o.execute(ctx, e, step, run)
	integrity := database.IsIntegrityViolation(err)
	if err != nil {
		// cached objects may mirror rows that were rolled back
		o.resolver.Reset()
		if integrity {
			log.Error("integrity violation on insert, rolled back", "importer", e.Name, "err", err)
		} else {
			log.Error("importer failed, rolled back", "importer", e.Name, "state", step.State, "err", err)
		}
	}

	step.Removed = run.Stats.Removed
	step.Created = run.Stats.Created
	step.Updated = run.Stats.Updated
	step.Skipped = run.Stats.Skipped
	if ferr := o.tracker.FinishStep(step, err); ferr != nil {
		log.Warn("failed to record importer result", "importer", e.Name, "err", ferr)
	}
	return &Outcome{Name: e.Name, State: step.State, Stats: run.Stats, Err: err, Integrity: integrity}, err
}

// execute walks one importer through its states inside a transaction.
// Tracker rows are not written here: the transaction holds the write lock.
func (o *Orchestrator) execute(ctx context.Context, e importer.Entry, step *progress.Step, run *importer.Run) (err error) {
	const op errors.Op = "orchestrator.execute"

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E(op, errors.KindDatabase, err, "begin")
	}
	defer func() {
		if err != nil {
			errors.IgnoreError(tx.Rollback(), "rollback after failed import")
		}
	}()
	run.Tx = tx

	if len(e.Owns) > 0 {
		if err = o.tracker.Transition(step, progress.StateDeleting); err != nil {
			return err
		}
		for _, table := range e.Owns {
			n, err := database.ResetTable(ctx, tx, table)
			if err != nil {
				return err
			}
			run.Stats.Removed += n
		}

		// ids restart with the delete, what is left is the cache
		if err = o.tracker.Transition(step, progress.StateRestarting); err != nil {
			return err
		}
		o.resolver.Invalidate(e.Owns...)
	}

	if err = o.resolver.Hydrate(ctx, tx); err != nil {
		return err
	}

	imp := e.New()
	if err = o.tracker.Transition(step, progress.StateParsing); err != nil {
		return err
	}
	if err = imp.Parse(ctx, run); err != nil {
		return err
	}

	if err = o.tracker.Transition(step, progress.StateInserting); err != nil {
		return err
	}
	if err = imp.Insert(ctx, run); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.E(op, errors.KindDatabase, err, "commit")
	}
	run.Report()
	return nil
}
