package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pavelanni/coursecore/internal/model"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts the driver names used in configuration.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runner issues queries written with ? placeholders against either a pool
// or a transaction.
type runner struct {
	q       querier
	dialect Dialect
}

func (r runner) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := r.q.ExecContext(ctx, r.dialect.rebind(query), args...)
	return res, mapErr(err)
}

func (r runner) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
	return rows, mapErr(err)
}

func (r runner) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

// Store is the persistence layer for the course graph.
type Store struct {
	runner
	db *sql.DB
}

// New opens the database at dsn and applies the schema. For SQLite, dsn is a
// file path or ":memory:".
func New(dialect Dialect, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectSQLite:
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			// Each connection to :memory: is its own database.
			conns := sqliteFileConns
			if isMemoryDSN(dsn) {
				conns = 1
			}
			db.SetMaxOpenConns(conns)
		}
	case DialectPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{runner: runner{q: db, dialect: dialect}, db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// sqliteFileConns bounds the pool for file databases. Writers still
// serialize through BEGIN IMMEDIATE and busy_timeout.
const sqliteFileConns = 4

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports the SQL flavour in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) migrate(ctx context.Context) error {
	ts := "DATETIME"
	if s.dialect == DialectPostgres {
		ts = "TIMESTAMPTZ"
	}
	schema := strings.ReplaceAll(`
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		fullname TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('STUDENT', 'TEACHER', 'ADMIN')),
		created_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		teacher_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'DRAFT',
		created_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS course_modules (
		id TEXT PRIMARY KEY,
		course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		order_index INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		module_id TEXT NOT NULL REFERENCES course_modules(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		video_key TEXT NOT NULL DEFAULT '',
		order_index INTEGER NOT NULL,
		is_preview BOOLEAN NOT NULL DEFAULT FALSE,
		summary TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS chapters_module_order ON chapters (module_id, order_index);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at {{ts}} NOT NULL,
		UNIQUE (user_id, course_id)
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		module_id TEXT NOT NULL UNIQUE REFERENCES course_modules(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		time_limit INTEGER NOT NULL DEFAULT 20,
		passing_score INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 0,
		shuffle_questions BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		created_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pretests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		passing_score INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 0,
		time_limit INTEGER NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		exam_id TEXT REFERENCES exams(id) ON DELETE CASCADE,
		pretest_id TEXT REFERENCES pretests(id) ON DELETE CASCADE,
		question TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'MULTIPLE_CHOICE',
		points INTEGER NOT NULL DEFAULT 1,
		order_index INTEGER NOT NULL,
		created_at {{ts}} NOT NULL,
		CHECK ((exam_id IS NULL) <> (pretest_id IS NULL))
	);
	CREATE UNIQUE INDEX IF NOT EXISTS questions_exam_order ON questions (exam_id, order_index);
	CREATE UNIQUE INDEX IF NOT EXISTS questions_pretest_order ON questions (pretest_id, order_index);

	CREATE TABLE IF NOT EXISTS question_options (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		option_text TEXT NOT NULL,
		is_correct BOOLEAN NOT NULL DEFAULT FALSE,
		explanation TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS exam_attempts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		exam_id TEXT REFERENCES exams(id) ON DELETE CASCADE,
		pretest_id TEXT REFERENCES pretests(id) ON DELETE CASCADE,
		score INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'IN_PROGRESS',
		started_at {{ts}} NOT NULL,
		submitted_at {{ts}},
		CHECK ((exam_id IS NULL) <> (pretest_id IS NULL))
	);

	CREATE TABLE IF NOT EXISTS exam_answers (
		id TEXT PRIMARY KEY,
		exam_attempt_id TEXT NOT NULL REFERENCES exam_attempts(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		selected_option_id TEXT NOT NULL DEFAULT '',
		correct_answer_id TEXT NOT NULL DEFAULT '',
		answer_text TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (exam_attempt_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		sha256 TEXT NOT NULL,
		imported_at {{ts}} NOT NULL
	);
	`, "{{ts}}", ts)
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// newID returns a fresh entity identifier.
func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// mapErr folds driver errors into model error kinds.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", model.ErrNotFound, err)
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", model.ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: referenced row: %v", model.ErrNotFound, err)
		}
		// Primary result code only.
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %v", model.ErrConflict, err)
		}
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505":
			return fmt.Errorf("%w: %v", model.ErrConflict, err)
		case "23503":
			return fmt.Errorf("%w: referenced row: %v", model.ErrNotFound, err)
		}
	}
	return err
}

// arg converts named string and bool types to plain driver values.
func arg(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// nullable maps an optional id to a driver value.
func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func ptrTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}
