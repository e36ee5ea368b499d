// Package store archives analysis runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/rtscope/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrRunNotFound is returned when a run ID is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite access for archived runs.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			input_dir TEXT NOT NULL,
			delay_ms REAL NOT NULL,
			z_score REAL NOT NULL,
			significance REAL NOT NULL,
			latency TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_participants (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			participant TEXT NOT NULL,
			conditions INTEGER NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS participant_fits (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			segment TEXT NOT NULL,
			r2 REAL NOT NULL,
			PRIMARY KEY (run_id, position, segment)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_run_participants_participant ON run_participants(participant);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a run and its per-participant fits. An empty ID or zero
// CreatedAt is filled in. It returns the run ID.
func (s *Store) SaveRun(ctx context.Context, rec model.RunRecord) (id string, err error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, input_dir, delay_ms, z_score, significance, latency)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.InputDir,
		rec.DelayMs,
		rec.ZScore,
		rec.Significance,
		rec.Latency,
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for pos, p := range rec.Participants {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO run_participants (run_id, position, participant, conditions) VALUES (?, ?, ?, ?)`,
			rec.ID, pos, p.ID, p.Conditions,
		); err != nil {
			return "", fmt.Errorf("failed to insert participant %s: %w", p.ID, err)
		}
		for _, segment := range sortedKeys(p.Fits) {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO participant_fits (run_id, position, segment, r2) VALUES (?, ?, ?, ?)`,
				rec.ID, pos, segment, p.Fits[segment],
			); err != nil {
				return "", fmt.Errorf("failed to insert fit %s/%s: %w", p.ID, segment, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ListRuns returns the most recent runs, newest first, with their participants.
// limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	query := `SELECT id, created_at, input_dir, delay_ms, z_score, significance, latency
		FROM runs
		ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	runs, err := s.queryRuns(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachParticipants(ctx, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (model.RunRecord, error) {
	runs, err := s.queryRuns(ctx, `SELECT id, created_at, input_dir, delay_ms, z_score, significance, latency
		FROM runs WHERE id = ?`, id)
	if err != nil {
		return model.RunRecord{}, err
	}
	if len(runs) == 0 {
		return model.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err := s.attachParticipants(ctx, runs); err != nil {
		return model.RunRecord{}, err
	}
	return runs[0], nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &createdAt, &rec.InputDir, &rec.DelayMs, &rec.ZScore, &rec.Significance, &rec.Latency); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = parsed
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) attachParticipants(ctx context.Context, runs []model.RunRecord) error {
	if len(runs) == 0 {
		return nil
	}
	placeholders := make([]string, len(runs))
	args := make([]any, len(runs))
	index := make(map[string]int, len(runs))
	for i, r := range runs {
		placeholders[i] = "?"
		args[i] = r.ID
		index[r.ID] = i
	}
	query := fmt.Sprintf(`SELECT p.run_id, p.position, p.participant, p.conditions, f.segment, f.r2
		FROM run_participants p
		LEFT JOIN participant_fits f ON f.run_id = p.run_id AND f.position = p.position
		WHERE p.run_id IN (%s)
		ORDER BY p.run_id, p.position, f.segment`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var runID, participant string
		var position, conditions int
		var segment sql.NullString
		var r2 sql.NullFloat64
		if err := rows.Scan(&runID, &position, &participant, &conditions, &segment, &r2); err != nil {
			return err
		}
		run := &runs[index[runID]]
		n := len(run.Participants)
		if n <= position {
			run.Participants = append(run.Participants, model.ParticipantFits{
				ID:         participant,
				Conditions: conditions,
				Fits:       map[string]float64{},
			})
			n++
		}
		if segment.Valid {
			run.Participants[n-1].Fits[segment.String] = r2.Float64
		}
	}
	return rows.Err()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
