package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/autoaim/internal/enemy"
	"github.com/banshee-data/autoaim/internal/tracking"
	"github.com/banshee-data/autoaim/internal/version"
	"github.com/google/uuid"
)

// Run is one recorded replay or live session.
type Run struct {
	ID        uuid.UUID
	Name      string
	Source    string // "scenario", "log", or a device name
	StartedAt time.Time
	Tuning    json.RawMessage
	Version   string // build that produced the run
}

// Estimate is one stored cycle of one tracker.
type Estimate struct {
	RunID     uuid.UUID
	Enemy     enemy.ID
	Cycle     uint64
	Session   uuid.UUID // uuid.Nil before the first wake
	At        time.Time
	Phase     string
	Jump      bool
	Status    string
	Plate     int
	Observed  bool
	Switched  bool
	Corrected int
	Skipped   int
	Nominal   enemy.Nominal
}

// PhaseCount is the number of cycles an enemy spent in one phase.
type PhaseCount struct {
	Enemy  enemy.ID
	Phase  string
	Cycles int
}

// StartRun inserts a new run with a fresh id. tuning is stored verbatim and
// may be nil.
func (db *DB) StartRun(name, source string, startedAt time.Time, tuning json.RawMessage) (Run, error) {
	if len(tuning) == 0 {
		tuning = json.RawMessage("{}")
	}
	run := Run{
		ID:        uuid.New(),
		Name:      name,
		Source:    source,
		StartedAt: startedAt,
		Tuning:    tuning,
		Version:   version.String(),
	}
	_, err := db.Exec(`
		INSERT INTO runs (run_id, name, source, started_at_ns, tuning_json, tool_version)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Name, run.Source, startedAt.UnixNano(), string(tuning), run.Version)
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// Runs returns every run, oldest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, name, source, started_at_ns, tuning_json, tool_version
		FROM runs
		ORDER BY started_at_ns, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r      Run
			id     string
			ns     int64
			tuning string
		)
		if err := rows.Scan(&id, &r.Name, &r.Source, &ns, &tuning, &r.Version); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run %q: %w", id, err)
		}
		r.StartedAt = time.Unix(0, ns).UTC()
		r.Tuning = json.RawMessage(tuning)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordSnapshots stores one cycle's snapshots in a single transaction.
func (db *DB) RecordSnapshots(runID uuid.UUID, snaps []tracking.Snapshot) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO estimates (
			run_id, enemy, cycle, session_id, at_ns, phase, jump, status, plate,
			observed, switched, corrected, skipped,
			theta, distance, v_tang, v_norm, v_spin, a_tang, a_norm, a_spin,
			armor_yaw, armor_r, armor_height
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range snaps {
		var session sql.NullString
		if s.Session != uuid.Nil {
			session = sql.NullString{String: s.Session.String(), Valid: true}
		}
		n := s.Nominal
		_, err = stmt.Exec(
			runID.String(), s.ID.String(), s.Cycle, session, s.At.UnixNano(),
			s.State.Phase.String(), s.State.Jump, s.Status.String(), s.Plate,
			s.Observed, s.Switched, s.Corrected, s.Skipped,
			n.Theta, n.Distance, n.VTang, n.VNorm, n.VSpin, n.ATang, n.ANorm, n.ASpin,
			n.ArmorYaw, n.ArmorR, n.ArmorHeight,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s cycle %d: %w", s.ID, s.Cycle, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit estimates: %w", err)
	}
	return nil
}

// Estimates returns the stored cycles of one enemy in a run, in cycle order.
func (db *DB) Estimates(runID uuid.UUID, id enemy.ID) ([]Estimate, error) {
	rows, err := db.Query(`
		SELECT cycle, session_id, at_ns, phase, jump, status, plate,
			observed, switched, corrected, skipped,
			theta, distance, v_tang, v_norm, v_spin, a_tang, a_norm, a_spin,
			armor_yaw, armor_r, armor_height
		FROM estimates
		WHERE run_id = ? AND enemy = ?
		ORDER BY cycle`, runID.String(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		e := Estimate{RunID: runID, Enemy: id}
		var (
			session sql.NullString
			ns      int64
			n       = &e.Nominal
		)
		err := rows.Scan(&e.Cycle, &session, &ns, &e.Phase, &e.Jump, &e.Status, &e.Plate,
			&e.Observed, &e.Switched, &e.Corrected, &e.Skipped,
			&n.Theta, &n.Distance, &n.VTang, &n.VNorm, &n.VSpin, &n.ATang, &n.ANorm, &n.ASpin,
			&n.ArmorYaw, &n.ArmorR, &n.ArmorHeight)
		if err != nil {
			return nil, err
		}
		if session.Valid {
			if e.Session, err = uuid.Parse(session.String); err != nil {
				return nil, fmt.Errorf("cycle %d session %q: %w", e.Cycle, session.String, err)
			}
		}
		e.At = time.Unix(0, ns).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// PhaseCounts summarizes how many cycles each enemy spent in each phase.
func (db *DB) PhaseCounts(runID uuid.UUID) ([]PhaseCount, error) {
	rows, err := db.Query(`
		SELECT enemy, phase, COUNT(*)
		FROM estimates
		WHERE run_id = ?
		GROUP BY enemy, phase
		ORDER BY enemy, phase`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query phase counts: %w", err)
	}
	defer rows.Close()

	var out []PhaseCount
	for rows.Next() {
		var (
			pc   PhaseCount
			name string
		)
		if err := rows.Scan(&name, &pc.Phase, &pc.Cycles); err != nil {
			return nil, err
		}
		if pc.Enemy, err = enemy.ParseID(name); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// Sessions returns the distinct tracking sessions of one enemy in a run,
// in the order they started.
func (db *DB) Sessions(runID uuid.UUID, id enemy.ID) ([]uuid.UUID, error) {
	rows, err := db.Query(`
		SELECT session_id
		FROM estimates
		WHERE run_id = ? AND enemy = ? AND session_id IS NOT NULL
		GROUP BY session_id
		ORDER BY MIN(cycle)`, runID.String(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
