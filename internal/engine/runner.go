package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Repository is the inventory and calibration store the engine reads from
// and commits to.
type Repository interface {
	// ListFreeComponents returns the unallocated components of one family.
	ListFreeComponents(ctx context.Context, family types.Family) ([]types.Component, error)

	// ListBatch returns every component of a batch regardless of allocation.
	ListBatch(ctx context.Context, family types.Family, batch string) ([]types.Component, error)

	// ListFreeCalibrations returns the unallocated sensor calibrations.
	ListFreeCalibrations(ctx context.Context) ([]types.SensorCalibration, error)

	// CommitAssignment marks the pairing's components and the sensor as
	// allocated. It fails without changes if any of them is already allocated.
	CommitAssignment(ctx context.Context, runID string, a types.Assignment) error
}

// Run is one executed plan with the bookkeeping Plan itself leaves out.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Committed  int       `json:"committed"`
	Result     *Result   `json:"result"`
}

// Runner loads a snapshot from a Repository and plans over it.
type Runner struct {
	repo  Repository
	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// NewRunner returns a Runner backed by repo.
func NewRunner(repo Repository) *Runner {
	return &Runner{repo: repo, now: time.Now, newID: uuid.NewString}
}

// Run plans once. With commit set, each assignment is committed in order;
// the first commit failure stops the run and is returned together with the
// partial Run.
func (r *Runner) Run(ctx context.Context, p Params, commit bool) (*Run, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	run := &Run{ID: r.newID(), StartedAt: r.now()}

	in, err := r.snapshot(ctx, p)
	if err != nil {
		return nil, err
	}

	res, err := Plan(in, p)
	if err != nil {
		return nil, err
	}
	run.Result = res
	logResult(run.ID, res)

	if commit {
		for _, a := range res.Assignments {
			if err := r.repo.CommitAssignment(ctx, run.ID, a); err != nil {
				run.FinishedAt = r.now()
				return run, fmt.Errorf("engine: commit %s -> %s: %w", a.Pairing.Key(), a.SensorID, err)
			}
			run.Committed++
		}
	}
	run.FinishedAt = r.now()
	return run, nil
}

// snapshot reads candidates, batch populations and sensors.
func (r *Runner) snapshot(ctx context.Context, p Params) (Input, error) {
	var in Input
	var err error
	if in.A, err = r.repo.ListFreeComponents(ctx, types.FamilyA); err != nil {
		return in, fmt.Errorf("engine: list family A: %w", err)
	}
	if in.B, err = r.repo.ListFreeComponents(ctx, types.FamilyB); err != nil {
		return in, fmt.Errorf("engine: list family B: %w", err)
	}
	if p.MaxPoolSize > 0 && (len(in.A) > p.MaxPoolSize || len(in.B) > p.MaxPoolSize) {
		return in, fmt.Errorf("engine: %w", &types.ConfigError{
			Field:  "max_pool_size",
			Reason: fmt.Sprintf("pools of %d A and %d B exceed %d", len(in.A), len(in.B), p.MaxPoolSize),
		})
	}

	in.Batches = make(map[BatchKey][]types.Component)
	for _, fam := range []struct {
		f  types.Family
		cs []types.Component
	}{{types.FamilyA, in.A}, {types.FamilyB, in.B}} {
		for _, b := range batchNames(fam.cs) {
			pop, err := r.repo.ListBatch(ctx, fam.f, b)
			if err != nil {
				return in, fmt.Errorf("engine: list batch %s/%s: %w", fam.f, b, err)
			}
			in.Batches[BatchKey{Family: fam.f, Batch: b}] = pop
		}
	}

	if in.Sensors, err = r.repo.ListFreeCalibrations(ctx); err != nil {
		return in, fmt.Errorf("engine: list calibrations: %w", err)
	}
	return in, nil
}

func batchNames(cs []types.Component) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cs {
		if !seen[c.Batch] {
			seen[c.Batch] = true
			out = append(out, c.Batch)
		}
	}
	sort.Strings(out)
	return out
}

// logResult writes one line per event and a summary line.
func logResult(runID string, res *Result) {
	for _, e := range res.Events {
		switch e.Kind {
		case types.EventUnmatchedComponent, types.EventUnmatchedPairing, types.EventUnmatchedSensor:
			slog.Info("engine: unmatched", "run", runID, "stage", e.Stage, "subject", e.Subject)
		default:
			slog.Warn("engine: skipped", "run", runID, "stage", e.Stage, "kind", e.Kind,
				"subject", e.Subject, "detail", e.Detail)
		}
	}
	for _, nm := range res.NoMatch {
		slog.Warn("engine: no match", "run", runID, "stage", nm.Stage, "reason", nm.Reason)
	}
	slog.Info("engine: plan complete",
		"run", runID,
		"pairings", len(res.Pairings),
		"assignments", len(res.Assignments),
		"match_yield", res.Yield,
	)
}
