package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"CascadeBandit/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			seed        INTEGER,
			iterations  INTEGER,
			steps       TEXT,
			failure     INTEGER,
			payments          INTEGER,
			success           INTEGER,
			primary_payments  INTEGER,
			primary_success   INTEGER,
			repeated_payments INTEGER,
			repeated_success  INTEGER,
			cascade_payments  INTEGER,
			cascade_success   INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS iterations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT NOT NULL,
			iteration     INTEGER NOT NULL,
			timestamp     INTEGER NOT NULL,
			cascade       TEXT,
			reward        INTEGER,
			converted_arm INTEGER,
			steps_visited INTEGER,
			skipped       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_iterations_run ON iterations(run_id, iteration)`,

		`CREATE TABLE IF NOT EXISTS arm_snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL,
			iteration      INTEGER NOT NULL,
			arm            INTEGER NOT NULL,
			constraint_left INTEGER,
			primary_alpha  REAL,
			primary_beta   REAL,
			repeated_alpha REAL,
			repeated_beta  REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_arm_snapshots_run ON arm_snapshots(run_id, iteration)`,

		`CREATE TABLE IF NOT EXISTS cascade_stats (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			cascade   TEXT NOT NULL,
			alpha     REAL,
			beta      REAL,
			mean      REAL,
			active    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cascade_stats_run ON cascade_stats(run_id, iteration)`,

		`CREATE TABLE IF NOT EXISTS failure_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			event_type TEXT,
			arm        INTEGER,
			iteration  INTEGER,
			constraint_left INTEGER,
			message    TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs
		(id, started_at, seed, iterations, steps, failure)
		VALUES (?,?,?,?,?,?)`,
		run.ID, run.StartedAt.Unix(), int64(run.Seed), run.Iterations, run.Steps, boolInt(run.Failure),
	)
	return err
}

func (r *SQLiteRecorder) FinishRun(runID string, c model.Counters) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`UPDATE runs SET
		finished_at = ?, payments = ?, success = ?,
		primary_payments = ?, primary_success = ?,
		repeated_payments = ?, repeated_success = ?,
		cascade_payments = ?, cascade_success = ?
		WHERE id = ?`,
		time.Now().Unix(), c.Payments, c.Success,
		c.PrimaryPayments, c.PrimarySuccess,
		c.RepeatedPayments, c.RepeatedSuccess,
		c.CascadePayments, c.CascadeSuccess,
		runID,
	)
	return err
}

func (r *SQLiteRecorder) RecordIteration(evt *IterationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO iterations
		(run_id, iteration, timestamp, cascade, reward, converted_arm, steps_visited, skipped)
		VALUES (?,?,?,?,?,?,?,?)`,
		evt.RunID, evt.Iteration, time.Now().Unix(), string(evt.Cascade),
		evt.Reward, evt.ConvertedArm, evt.StepsVisited, boolInt(evt.Skipped),
	)
	return err
}

// RecordSnapshot stores every arm and every historical configuration in one transaction.
func (r *SQLiteRecorder) RecordSnapshot(runID string, iteration int, snap *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, a := range snap.Arms {
		if _, err := tx.Exec(`INSERT INTO arm_snapshots
			(run_id, iteration, arm, constraint_left, primary_alpha, primary_beta, repeated_alpha, repeated_beta)
			VALUES (?,?,?,?,?,?,?,?)`,
			runID, iteration, a.Index, a.Constraint,
			a.Primary.Alpha, a.Primary.Beta, a.Repeated.Alpha, a.Repeated.Beta,
		); err != nil {
			return fmt.Errorf("insert arm %d: %w", a.Index, err)
		}
	}
	for _, c := range snap.Historical {
		if _, err := tx.Exec(`INSERT INTO cascade_stats
			(run_id, iteration, cascade, alpha, beta, mean, active)
			VALUES (?,?,?,?,?,?,?)`,
			runID, iteration, string(c.Key), c.Stats.Alpha, c.Stats.Beta, c.Stats.Mean, boolInt(c.Active),
		); err != nil {
			return fmt.Errorf("insert cascade %q: %w", c.Key, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordFailure(runID string, evt *model.FailureEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO failure_events
		(run_id, timestamp, event_type, arm, iteration, constraint_left, message)
		VALUES (?,?,?,?,?,?,?)`,
		runID, time.Now().Unix(), string(evt.Type), evt.Arm, evt.Iteration, evt.Constraint, evt.Message,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
