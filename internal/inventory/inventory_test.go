package inventory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairmatch/pairmatch/pkg/types"
)

const seedYAML = `
components:
  - id: B2
    family: B
    batch: lot-b
    geometry: 0.5
    pressures: [10, 20]
    flow_rates: [1.0, 2.0]
  - id: A1
    family: A
    batch: lot-a
    geometry: 1.2
    pressures: [10, 20]
    flow_rates: [13.0, 26.0]
  - id: B1
    family: B
    batch: lot-b
    geometry: 0.4
    pressures: [10, 20]
    flow_rates: [0.9, 1.8]
    allocated: true
calibrations:
  - id: S2
    model: ratiometric
    coefficients: [0, 0.5]
    reference_resistance: 1000
    resistance_table:
      - {resistance: 1000, temperature: 20}
  - id: S1
    model: polynomial
    coefficients: [0, 0.5]
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func loadSeed(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := LoadFile(writeSeed(t, seedYAML))
	require.NoError(t, err)
	return snap
}

func ids[T any](xs []T, id func(T) string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = id(x)
	}
	return out
}

func compID(c types.Component) string        { return c.ID }
func calID(c types.SensorCalibration) string { return c.ID }

func TestLoadFile(t *testing.T) {
	snap := loadSeed(t)
	require.Len(t, snap.Components, 3)
	require.Len(t, snap.Calibrations, 2)
	assert.Equal(t, types.FamilyA, snap.Components[1].Family)
	assert.Equal(t, types.ModelRatiometric, snap.Calibrations[0].Model)
	assert.Equal(t, 20.0, snap.Calibrations[0].ResistanceTable[0].Temperature)
}

func TestLoadFile_Rejects(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"missing id", "components:\n  - family: A\n", "id is required"},
		{"duplicate", "components:\n  - {id: X, family: A}\n  - {id: X, family: B}\n", "duplicate id"},
		{"bad family", "components:\n  - {id: X, family: C}\n", "unknown family"},
		{"calibration id", "calibrations:\n  - model: polynomial\n", "id is required"},
		{"malformed", "components: [", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeSeed(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "inventory: read file"))
}

// repository is the surface shared by Memory and SQLite.
type repository interface {
	ListFreeComponents(ctx context.Context, family types.Family) ([]types.Component, error)
	ListBatch(ctx context.Context, family types.Family, batch string) ([]types.Component, error)
	ListFreeCalibrations(ctx context.Context) ([]types.SensorCalibration, error)
	CommitAssignment(ctx context.Context, runID string, a types.Assignment) error
}

func backends(t *testing.T) map[string]repository {
	t.Helper()
	snap := loadSeed(t)

	mem := NewMemory()
	mem.Load(snap)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "pairmatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Import(context.Background(), snap))

	return map[string]repository{"memory": mem, "sqlite": db}
}

func TestRepository_Lists(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			as, err := repo.ListFreeComponents(ctx, types.FamilyA)
			require.NoError(t, err)
			assert.Equal(t, []string{"A1"}, ids(as, compID))
			assert.Equal(t, []float64{13, 26}, as[0].FlowRates)

			bs, err := repo.ListFreeComponents(ctx, types.FamilyB)
			require.NoError(t, err)
			assert.Equal(t, []string{"B2"}, ids(bs, compID))

			batch, err := repo.ListBatch(ctx, types.FamilyB, "lot-b")
			require.NoError(t, err)
			assert.Equal(t, []string{"B1", "B2"}, ids(batch, compID), "allocated members included")

			cals, err := repo.ListFreeCalibrations(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"S1", "S2"}, ids(cals, calID))
			want := types.SensorCalibration{
				ID: "S2", Model: types.ModelRatiometric, Coefficients: []float64{0, 0.5},
				ReferenceResistance: 1000, ResistanceTable: []types.RTSample{{Resistance: 1000, Temperature: 20}},
			}
			if diff := cmp.Diff(want, cals[1]); diff != "" {
				t.Errorf("calibration round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRepository_CommitAssignment(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := types.Assignment{
				Pairing:     types.Pairing{A: "A1", B: "B2", Ratios: []float64{13, 13}},
				SensorID:    "S1",
				Predicted:   []float64{1, 2},
				WorstMargin: 0.4,
			}
			require.NoError(t, repo.CommitAssignment(ctx, "run-1", a))

			as, err := repo.ListFreeComponents(ctx, types.FamilyA)
			require.NoError(t, err)
			assert.Empty(t, as)
			cals, err := repo.ListFreeCalibrations(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"S2"}, ids(cals, calID))

			// Committing the same pairing again fails.
			a.SensorID = "S2"
			require.Error(t, repo.CommitAssignment(ctx, "run-2", a))
			cals, err = repo.ListFreeCalibrations(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"S2"}, ids(cals, calID), "failed commit leaves the sensor free")
		})
	}
}

func TestRepository_CommitUnknown(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := repo.CommitAssignment(ctx, "run-1", types.Assignment{
				Pairing: types.Pairing{A: "A1", B: "B2"}, SensorID: "S9",
			})
			require.Error(t, err)

			as, err := repo.ListFreeComponents(ctx, types.FamilyA)
			require.NoError(t, err)
			assert.Len(t, as, 1, "rolled back")
		})
	}
}

func TestMemory_CommitsRecordTime(t *testing.T) {
	m := NewMemory()
	m.Load(loadSeed(t))
	at := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	require.NoError(t, m.CommitAssignment(context.Background(), "run-7", types.Assignment{
		Pairing: types.Pairing{A: "A1", B: "B2"}, SensorID: "S2", WorstMargin: 1.5,
	}))
	got := m.Commits()
	require.Len(t, got, 1)
	assert.Equal(t, Commit{RunID: "run-7", Pairing: types.Pairing{A: "A1", B: "B2"}, SensorID: "S2", WorstMargin: 1.5, CommittedAt: at}, got[0])
}

func TestSQLite_CountAssignmentsAndReimport(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "pairmatch.db"))
	require.NoError(t, err)
	defer db.Close()

	snap := loadSeed(t)
	require.NoError(t, db.Import(ctx, snap))
	require.NoError(t, db.CommitAssignment(ctx, "run-1", types.Assignment{
		Pairing: types.Pairing{A: "A1", B: "B2"}, SensorID: "S1",
	}))
	n, err := db.CountAssignments(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-importing the seed keeps committed parts allocated.
	require.NoError(t, db.Import(ctx, snap))
	as, err := db.ListFreeComponents(ctx, types.FamilyA)
	require.NoError(t, err)
	assert.Empty(t, as)
	bs, err := db.ListFreeComponents(ctx, types.FamilyB)
	require.NoError(t, err)
	assert.Empty(t, bs, "B1 is allocated in the seed, B2 by the commit")
	cals, err := db.ListFreeCalibrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"S2"}, ids(cals, calID))

	err = db.CommitAssignment(ctx, "run-2", types.Assignment{
		Pairing: types.Pairing{A: "A1", B: "B2"}, SensorID: "S2",
	})
	require.Error(t, err, "A1 is already committed")
	n, err = db.CountAssignments(ctx, "run-2")
	require.NoError(t, err)
	assert.Zero(t, n)
}
