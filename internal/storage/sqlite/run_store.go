// Package sqlite persists resampling run summaries so repeated runs over
// the same inputs can be compared by digest.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is a persisted run summary.
type Run struct {
	RunID       string          `json:"run_id"`
	FieldName   string          `json:"field_name"`
	Association string          `json:"association"`
	Measurement string          `json:"measurement"`
	NumPoints   int64           `json:"num_points"`
	NumCells    int64           `json:"num_cells"`
	NumTrees    int64           `json:"num_trees"`
	NumNodes    int64           `json:"num_nodes"`
	MaskedNodes int64           `json:"masked_nodes"`
	Skipped     int64           `json:"skipped"`
	Digest      string          `json:"digest"`
	ElapsedNs   int64           `json:"elapsed_ns"`
	ParamsJSON  json.RawMessage `json:"params_json,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

// RunStore provides persistence for resampling runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Open opens (or creates) a run database at path and ensures the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run db: %w", err)
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the resample_runs table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS resample_runs (
			run_id TEXT PRIMARY KEY,
			field_name TEXT NOT NULL,
			association TEXT NOT NULL,
			measurement TEXT,
			num_points INTEGER NOT NULL,
			num_cells INTEGER NOT NULL,
			num_trees INTEGER NOT NULL,
			num_nodes INTEGER NOT NULL,
			masked_nodes INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			digest TEXT NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			params_json TEXT,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create resample_runs table: %w", err)
	}
	return nil
}

// Insert persists a run. If RunID is empty, a UUID is generated.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO resample_runs (
				run_id, field_name, association, measurement,
				num_points, num_cells, num_trees, num_nodes, masked_nodes, skipped,
				digest, elapsed_ns, params_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.FieldName, run.Association, run.Measurement,
			run.NumPoints, run.NumCells, run.NumTrees, run.NumNodes, run.MaskedNodes, run.Skipped,
			run.Digest, run.ElapsedNs, paramsStr, run.CreatedAt,
		)
		return err
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, field_name, association, measurement,
		       num_points, num_cells, num_trees, num_nodes, masked_nodes, skipped,
		       digest, elapsed_ns, params_json, created_at
		FROM resample_runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return r, err
}

// ListByField returns all runs over the given field, newest first.
func (s *RunStore) ListByField(fieldName string) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, field_name, association, measurement,
		       num_points, num_cells, num_trees, num_nodes, masked_nodes, skipped,
		       digest, elapsed_ns, params_json, created_at
		FROM resample_runs
		WHERE field_name = ?
		ORDER BY created_at DESC`, fieldName)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run by ID.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM resample_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var paramsStr sql.NullString
	err := row.Scan(
		&r.RunID, &r.FieldName, &r.Association, &r.Measurement,
		&r.NumPoints, &r.NumCells, &r.NumTrees, &r.NumNodes, &r.MaskedNodes, &r.Skipped,
		&r.Digest, &r.ElapsedNs, &paramsStr, &r.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	return &r, nil
}

// retryOnBusy retries a write a few times when the database is locked by a
// concurrent writer.
func retryOnBusy(op func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
