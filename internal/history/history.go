package history

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run is one submitted job as seen from this machine.
type Run struct {
	ID        string
	Workflow  string
	Step      string
	Endpoint  string
	JobHash   string
	Token     string
	Status    string
	Elapsed   time.Duration
	Outputs   int
	Error     string
	StartedAt time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		workflow TEXT,
		step TEXT,
		endpoint TEXT,
		job_hash TEXT,
		token TEXT,
		status TEXT,
		elapsed_seconds INTEGER,
		outputs INTEGER,
		error TEXT,
		started_at TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run, assigning an ID and start time when missing.
func (s *Store) Record(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO runs (id, workflow, step, endpoint, job_hash, token, status, elapsed_seconds, outputs, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Workflow, run.Step, run.Endpoint, run.JobHash, run.Token, run.Status,
		int64(run.Elapsed/time.Second), run.Outputs, run.Error, run.StartedAt)
	return run, err
}

// List returns the most recent runs first; limit <= 0 returns all of them.
func (s *Store) List(limit int) ([]Run, error) {
	query := `SELECT id, workflow, step, endpoint, job_hash, token, status, elapsed_seconds, outputs, error, started_at
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var elapsed int64
		if err := rows.Scan(&r.ID, &r.Workflow, &r.Step, &r.Endpoint, &r.JobHash, &r.Token, &r.Status,
			&elapsed, &r.Outputs, &r.Error, &r.StartedAt); err != nil {
			return nil, err
		}
		r.Elapsed = time.Duration(elapsed) * time.Second
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
