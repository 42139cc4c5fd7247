package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLRepo stores tasks in a relational table. Queries are written with `?`
// placeholders and rebound for Postgres.
type SQLRepo struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewSQLiteRepo(dsn string) (*SQLRepo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Reasonable pragmas for an app server
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newSQLRepo(db, DialectSQLite), nil
}

func NewPostgresRepo(ctx context.Context, dsn string) (*SQLRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLRepo(db, DialectPostgres), nil
}

func newSQLRepo(db *sql.DB, dialect Dialect) *SQLRepo {
	return &SQLRepo{
		db:      db,
		dialect: dialect,
		// Postgres keeps microseconds; truncate so returned values match reads.
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (r *SQLRepo) Close() error { return r.db.Close() }

func (r *SQLRepo) Dialect() Dialect { return r.dialect }

// Ping backs the readiness probe.
func (r *SQLRepo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

const taskColumns = `id, title, description, due_date, completed, created_at, updated_at`

func (r *SQLRepo) FindByID(ctx context.Context, id int64) (Task, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = ?
	`), id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("find task %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLRepo) FindAll(ctx context.Context) ([]Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLRepo) Save(ctx context.Context, t Task) (Task, error) {
	now := r.now()
	t = t.clone()
	t.DueDate = normalizeTime(t.DueDate)

	if t.ID == 0 {
		err := r.db.QueryRowContext(ctx, r.rebind(`
			INSERT INTO tasks (title, description, due_date, completed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id
		`), t.Title, nullString(t.Description), r.nullTimeArg(t.DueDate), t.Completed, r.timeArg(now), r.timeArg(now)).Scan(&t.ID)
		if err != nil {
			return Task{}, fmt.Errorf("insert task: %w", err)
		}
		t.CreatedAt = now
		t.UpdatedAt = now
		return t, nil
	}

	var created dbTime
	err := r.db.QueryRowContext(ctx, r.rebind(`
		UPDATE tasks
		SET title = ?, description = ?, due_date = ?, completed = ?, updated_at = ?
		WHERE id = ?
		RETURNING created_at
	`), t.Title, nullString(t.Description), r.nullTimeArg(t.DueDate), t.Completed, r.timeArg(now), t.ID).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task %d: %w", t.ID, err)
	}
	t.CreatedAt = created.Time
	t.UpdatedAt = now
	return t, nil
}

func (r *SQLRepo) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyMigrations ensures schema exists
func (r *SQLRepo) ApplyMigrations(ctx context.Context) error {
	schema := sqliteSchema
	if r.dialect == DialectPostgres {
		schema = postgresSchema
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT,
	due_date TEXT,
	completed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	title VARCHAR(100) NOT NULL,
	description VARCHAR(500),
	due_date TIMESTAMPTZ,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// rebind turns `?` placeholders into `$1..$n` for Postgres.
func (r *SQLRepo) rebind(q string) string {
	if r.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// SQLite keeps timestamps as RFC 3339 text; Postgres takes time.Time.
func (r *SQLRepo) timeArg(t time.Time) any {
	if r.dialect == DialectSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

func (r *SQLRepo) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return r.timeArg(*t)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (Task, error) {
	var (
		t           Task
		description sql.NullString
		due         dbTime
		created     dbTime
		updated     dbTime
	)
	if err := s.Scan(&t.ID, &t.Title, &description, &due, &t.Completed, &created, &updated); err != nil {
		return Task{}, err
	}
	if description.Valid {
		t.Description = &description.String
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	t.CreatedAt = created.Time
	t.UpdatedAt = updated.Time
	return t, nil
}

// dbTime scans a nullable timestamp stored either natively or as text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (d *dbTime) parse(s string) error {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	d.Time, d.Valid = ts.UTC(), true
	return nil
}

// Helper to build DSN like: file:/absolute/path?_pragma=busy_timeout(5000)
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) + "?_pragma=busy_timeout(5000)", nil
}
