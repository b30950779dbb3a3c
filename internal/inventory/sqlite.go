package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/pairmatch/pairmatch/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS components (
	id         TEXT PRIMARY KEY,
	family     TEXT NOT NULL,
	batch      TEXT NOT NULL,
	geometry   REAL NOT NULL,
	pressures  TEXT NOT NULL,
	flow_rates TEXT NOT NULL,
	allocated  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_components_family ON components(family, allocated);
CREATE INDEX IF NOT EXISTS idx_components_batch ON components(family, batch);

CREATE TABLE IF NOT EXISTS calibrations (
	id                   TEXT PRIMARY KEY,
	model                TEXT NOT NULL,
	coefficients         TEXT NOT NULL,
	reference_resistance REAL NOT NULL,
	resistance_table     TEXT NOT NULL,
	signal_table         TEXT NOT NULL,
	allocated            INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assignments (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	component_a  TEXT NOT NULL REFERENCES components(id),
	component_b  TEXT NOT NULL REFERENCES components(id),
	sensor_id    TEXT NOT NULL REFERENCES calibrations(id),
	ratios       TEXT NOT NULL,
	predicted    TEXT NOT NULL,
	worst_margin REAL NOT NULL,
	committed_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assignments_run ON assignments(run_id);
`

// SQLite is a Repository persisted in one SQLite database file.
type SQLite struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// OpenSQLite creates or opens the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("inventory: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("inventory: open database: %w", err)
	}
	// Commits are single-writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("inventory: initialize schema: %w", err)
	}
	return &SQLite{db: db, dbPath: path, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

// Import upserts every record of snap in one transaction. Allocation is
// never downgraded: a record already allocated in the database stays
// allocated whatever the snapshot says.
func (s *SQLite) Import(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inventory: begin import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range snap.Components {
		var enc encoder
		ps, fs := enc.json(c.Pressures), enc.json(c.FlowRates)
		if enc.err != nil {
			return fmt.Errorf("inventory: encode component %q: %w", c.ID, enc.err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO components (id, family, batch, geometry, pressures, flow_rates, allocated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				family = excluded.family, batch = excluded.batch, geometry = excluded.geometry,
				pressures = excluded.pressures, flow_rates = excluded.flow_rates,
				allocated = MAX(components.allocated, excluded.allocated)`,
			c.ID, string(c.Family), c.Batch, c.Geometry, ps, fs, c.Allocated)
		if err != nil {
			return fmt.Errorf("inventory: import component %q: %w", c.ID, err)
		}
	}
	for _, c := range snap.Calibrations {
		var enc encoder
		coeffs, rt, sig := enc.json(c.Coefficients), enc.json(c.ResistanceTable), enc.json(c.SignalTable)
		if enc.err != nil {
			return fmt.Errorf("inventory: encode calibration %q: %w", c.ID, enc.err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calibrations (id, model, coefficients, reference_resistance, resistance_table, signal_table, allocated)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				model = excluded.model, coefficients = excluded.coefficients,
				reference_resistance = excluded.reference_resistance,
				resistance_table = excluded.resistance_table, signal_table = excluded.signal_table,
				allocated = MAX(calibrations.allocated, excluded.allocated)`,
			c.ID, string(c.Model), coeffs, c.ReferenceResistance, rt, sig, c.Allocated)
		if err != nil {
			return fmt.Errorf("inventory: import calibration %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ListFreeComponents returns the unallocated components of family, by id.
func (s *SQLite) ListFreeComponents(ctx context.Context, family types.Family) ([]types.Component, error) {
	return s.queryComponents(ctx, `WHERE family = ? AND allocated = 0`, string(family))
}

// ListBatch returns every component of one batch, by id.
func (s *SQLite) ListBatch(ctx context.Context, family types.Family, batch string) ([]types.Component, error) {
	return s.queryComponents(ctx, `WHERE family = ? AND batch = ?`, string(family), batch)
}

// ListFreeCalibrations returns the unallocated calibrations, by id.
func (s *SQLite) ListFreeCalibrations(ctx context.Context) ([]types.SensorCalibration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, coefficients, reference_resistance, resistance_table, signal_table, allocated
		FROM calibrations WHERE allocated = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("inventory: query calibrations: %w", err)
	}
	defer rows.Close()

	var out []types.SensorCalibration
	for rows.Next() {
		var c types.SensorCalibration
		var model, coeffs, rt, sig string
		if err := rows.Scan(&c.ID, &model, &coeffs, &c.ReferenceResistance, &rt, &sig, &c.Allocated); err != nil {
			return nil, fmt.Errorf("inventory: scan calibration: %w", err)
		}
		c.Model = types.CalibrationModel(model)
		if err := unmarshalAll(c.ID, []byte(coeffs), &c.Coefficients, []byte(rt), &c.ResistanceTable, []byte(sig), &c.SignalTable); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CommitAssignment allocates both components and the sensor of a and records
// the assignment, atomically.
func (s *SQLite) CommitAssignment(ctx context.Context, runID string, a types.Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("inventory: begin commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range []string{a.Pairing.A, a.Pairing.B} {
		if err := allocate(ctx, tx, "components", id); err != nil {
			return err
		}
	}
	if err := allocate(ctx, tx, "calibrations", a.SensorID); err != nil {
		return err
	}

	var enc encoder
	ratios, predicted := enc.json(a.Pairing.Ratios), enc.json(a.Predicted)
	if enc.err != nil {
		return fmt.Errorf("inventory: encode assignment: %w", enc.err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO assignments (id, run_id, component_a, component_b, sensor_id, ratios, predicted, worst_margin, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, a.Pairing.A, a.Pairing.B, a.SensorID,
		ratios, predicted, a.WorstMargin, s.now().UTC())
	if err != nil {
		return fmt.Errorf("inventory: record assignment: %w", err)
	}
	return tx.Commit()
}

// CountAssignments returns the number of assignments recorded for runID.
func (s *SQLite) CountAssignments(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("inventory: count assignments: %w", err)
	}
	return n, nil
}

// allocate flips one free row to allocated, failing if it is missing or taken.
func allocate(ctx context.Context, tx *sql.Tx, table, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE `+table+` SET allocated = 1 WHERE id = ? AND allocated = 0`, id)
	if err != nil {
		return fmt.Errorf("inventory: allocate %s %q: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inventory: allocate %s %q: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("inventory: %s %q is unknown or already allocated", table, id)
	}
	return nil
}

func (s *SQLite) queryComponents(ctx context.Context, where string, args ...any) ([]types.Component, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, family, batch, geometry, pressures, flow_rates, allocated
		FROM components `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: query components: %w", err)
	}
	defer rows.Close()

	var out []types.Component
	for rows.Next() {
		var c types.Component
		var fam, ps, fs string
		if err := rows.Scan(&c.ID, &fam, &c.Batch, &c.Geometry, &ps, &fs, &c.Allocated); err != nil {
			return nil, fmt.Errorf("inventory: scan component: %w", err)
		}
		c.Family = types.Family(fam)
		if err := unmarshalAll(c.ID, []byte(ps), &c.Pressures, []byte(fs), &c.FlowRates); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// unmarshalAll decodes (data, target) pairs of JSON columns.
func unmarshalAll(id string, pairs ...any) error {
	if len(pairs)%2 != 0 {
		return errors.New("inventory: unmarshalAll needs (data, target) pairs")
	}
	for i := 0; i < len(pairs); i += 2 {
		if err := json.Unmarshal(pairs[i].([]byte), pairs[i+1]); err != nil {
			return fmt.Errorf("inventory: decode record %q: %w", id, err)
		}
	}
	return nil
}

// encoder marshals JSON columns and keeps the first error.
type encoder struct {
	err error
}

func (e *encoder) json(v any) string {
	if e.err != nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		e.err = err
		return ""
	}
	return string(b)
}
