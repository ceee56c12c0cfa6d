package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dualsub/internal/jobs"
	"dualsub/internal/logging"
	"dualsub/internal/services"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultLimit bounds List when the filter sets no limit.
const DefaultLimit = 100

// Entry is one archived job.
type Entry struct {
	JobID       string         `json:"job_id"`
	Type        jobs.Type      `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      jobs.Status    `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
	Duration    time.Duration  `json:"duration_ns"`
	Result      map[string]any `json:"result,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Filter narrows List.
type Filter struct {
	Status jobs.Status
	Type   jobs.Type
	Limit  int
}

// Store is the SQLite job archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the archive at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "history path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Record archives a terminal job. Re-recording a job replaces the entry.
func (s *Store) Record(ctx context.Context, job jobs.Job) error {
	if !job.Status.IsTerminal() {
		return services.Wrap(services.ErrValidation, "history", "record", fmt.Sprintf("job %s is %s", job.ID, job.Status), nil)
	}
	completed := time.Now().UTC()
	if job.CompletedAt != nil {
		completed = job.CompletedAt.UTC()
	}
	resultJSON, err := marshalMap(job.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	metadataJSON, err := marshalMap(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO job_history (
            job_id, job_type, title, description, status, error,
            created_at, started_at, completed_at, duration_ms, result_json, metadata_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Type),
		job.Title,
		nullableString(job.Description),
		string(job.Status),
		nullableString(job.Error),
		job.CreatedAt.UTC().Format(timeLayout),
		nullableTime(job.StartedAt),
		completed.Format(timeLayout),
		job.Duration(completed).Milliseconds(),
		resultJSON,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

const selectColumns = `job_id, job_type, title, description, status, error,
    created_at, started_at, completed_at, duration_ms, result_json, metadata_json`

// List returns archived jobs, most recently completed first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		where = append(where, "job_type = ?")
		args = append(args, string(f.Type))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := "SELECT " + selectColumns + " FROM job_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns one archived job.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM job_history WHERE job_id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, services.Wrap(services.ErrNotFound, "history", "get", fmt.Sprintf("job %s", id), nil)
	}
	return entry, err
}

// Prune deletes entries completed before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM job_history WHERE completed_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Hook returns an orchestrator terminal hook that archives each job.
// Failures are logged and never affect the job.
func (s *Store) Hook(logger *slog.Logger) func(jobs.Job) {
	logger = logging.NewComponentLogger(logger, "history")
	return func(job jobs.Job) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Record(ctx, job); err != nil {
			logging.WarnWithContext(logger, "job history write failed", "history_write_failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job will be missing from history"),
				logging.String(logging.FieldErrorHint, "check permissions on "+s.path),
			)
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                        Entry
		jobType, status          string
		created, completed       string
		durationMS               int64
		description, errText     sql.NullString
		started                  sql.NullString
		resultJSON, metadataJSON sql.NullString
	)
	if err := row.Scan(&e.JobID, &jobType, &e.Title, &description, &status, &errText,
		&created, &started, &completed, &durationMS, &resultJSON, &metadataJSON); err != nil {
		return Entry{}, err
	}
	e.Type = jobs.Type(jobType)
	e.Status = jobs.Status(status)
	e.Description = description.String
	e.Error = errText.String
	e.Duration = time.Duration(durationMS) * time.Millisecond
	var err error
	if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	if e.CompletedAt, err = time.Parse(timeLayout, completed); err != nil {
		return Entry{}, fmt.Errorf("parse completed_at: %w", err)
	}
	if started.Valid && started.String != "" {
		t, err := time.Parse(timeLayout, started.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse started_at: %w", err)
		}
		e.StartedAt = &t
	}
	if e.Result, err = unmarshalMap(resultJSON); err != nil {
		return Entry{}, fmt.Errorf("decode result: %w", err)
	}
	if e.Metadata, err = unmarshalMap(metadataJSON); err != nil {
		return Entry{}, fmt.Errorf("decode metadata: %w", err)
	}
	return e, nil
}

func marshalMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalMap(v sql.NullString) (map[string]any, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
