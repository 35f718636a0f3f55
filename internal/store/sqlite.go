package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

//go:embed migrations/001_patterns.sql
var migrationSQL string

const patternColumns = `pattern_id, pattern_type, name, template, category, confidence,
	quality_score, frequency, reuse_count, success_rate, deprecated, version,
	source_session_id, last_used, created_at, updated_at, document`

// SQLiteStore is a SQLite-backed Store. It uses a single connection, so
// transactions are serialized.
type SQLiteStore struct {
	db        *sql.DB
	logger    *zap.Logger
	closeOnce sync.Once
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for a private in-memory database.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Debug("sqlite store opened", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get implements Reader.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	return getRow(ctx, s.db, id)
}

// List implements Reader. Rows that cannot be decoded are logged and skipped.
func (s *SQLiteStore) List(ctx context.Context, q Query) ([]*pattern.Pattern, error) {
	return listRows(ctx, s.db, s.logger, q)
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) ([]TypeStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern_type,
		       COUNT(*),
		       SUM(deprecated),
		       AVG(CASE WHEN deprecated = 0 THEN quality_score END),
		       AVG(CASE WHEN deprecated = 0 THEN confidence END),
		       SUM(frequency),
		       SUM(reuse_count)
		FROM patterns
		GROUP BY pattern_type
		ORDER BY pattern_type
	`)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	var out []TypeStats
	for rows.Next() {
		var st TypeStats
		var avgQuality, avgConfidence sql.NullFloat64
		if err := rows.Scan(&st.Type, &st.Count, &st.Deprecated, &avgQuality, &avgConfidence, &st.TotalFrequency, &st.TotalReuse); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		st.AvgQuality = avgQuality.Float64
		st.AvgConfidence = avgConfidence.Float64
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats: %w", err)
	}
	return out, nil
}

// WithTx implements Store.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	start := time.Now()
	defer func() { recordTransaction(backendSQLite, start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx, logger: s.logger}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

type sqliteTx struct {
	tx     *sql.Tx
	logger *zap.Logger
}

func (t *sqliteTx) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	return getRow(ctx, t.tx, id)
}

func (t *sqliteTx) List(ctx context.Context, q Query) ([]*pattern.Pattern, error) {
	return listRows(ctx, t.tx, t.logger, q)
}

func (t *sqliteTx) Insert(ctx context.Context, p *pattern.Pattern) error {
	if err := validateForWrite(p); err != nil {
		return err
	}
	args, err := rowArgs(p)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, p.ID)
		}
		return fmt.Errorf("inserting pattern %s: %w", p.ID, err)
	}
	WritesTotal.WithLabelValues(backendSQLite, "insert").Inc()
	return nil
}

func (t *sqliteTx) Update(ctx context.Context, p *pattern.Pattern) error {
	if err := validateForWrite(p); err != nil {
		return err
	}
	args, err := rowArgs(p)
	if err != nil {
		return err
	}

	// pattern_id and pattern_type are immutable.
	res, err := t.tx.ExecContext(ctx, `
		UPDATE patterns SET
			name = ?, template = ?, category = ?, confidence = ?,
			quality_score = ?, frequency = ?, reuse_count = ?, success_rate = ?,
			deprecated = ?, version = ?, source_session_id = ?, last_used = ?,
			created_at = ?, updated_at = ?, document = ?
		WHERE pattern_id = ? AND pattern_type = ?
	`, append(args[2:], p.ID, string(p.Type))...)
	if err != nil {
		return fmt.Errorf("updating pattern %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating pattern %s: %w", p.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", pattern.ErrNotFound, p.ID)
	}
	WritesTotal.WithLabelValues(backendSQLite, "update").Inc()
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRow(ctx context.Context, q querier, id string) (*pattern.Pattern, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT document FROM patterns WHERE pattern_id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pattern.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying pattern %s: %w", id, err)
	}

	p, err := decodeDocument(doc)
	if err != nil {
		CorruptRowsTotal.WithLabelValues(backendSQLite).Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	return p, nil
}

func listRows(ctx context.Context, q querier, logger *zap.Logger, query Query) ([]*pattern.Pattern, error) {
	var where []string
	var args []any
	if !query.IncludeDeprecated {
		where = append(where, "deprecated = 0")
	}
	if query.Type != "" {
		where = append(where, "pattern_type = ?")
		args = append(args, string(query.Type))
	}
	where = append(where, "quality_score >= ?")
	args = append(args, query.MinQuality)

	stmt := `SELECT pattern_id, document FROM patterns WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY quality_score DESC, frequency DESC, pattern_id ASC`
	if query.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, query.Limit)
	}

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing patterns: %w", err)
	}
	defer rows.Close()

	out := make([]*pattern.Pattern, 0)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning pattern: %w", err)
		}
		p, err := decodeDocument(doc)
		if err != nil {
			CorruptRowsTotal.WithLabelValues(backendSQLite).Inc()
			logger.Warn("skipping corrupt pattern row", zap.String("pattern_id", id), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patterns: %w", err)
	}
	return out, nil
}

func rowArgs(p *pattern.Pattern) ([]any, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding pattern %s: %w", p.ID, err)
	}
	var lastUsed any
	if p.LastUsed != nil {
		lastUsed = p.LastUsed.UTC().Format(time.RFC3339Nano)
	}
	return []any{
		p.ID, string(p.Type), p.Name, p.Template, p.Category, p.Confidence,
		p.QualityScore, p.Frequency, p.ReuseCount, p.SuccessRate, boolToInt(p.Deprecated), p.Version,
		p.SourceSessionID, lastUsed,
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(doc),
	}, nil
}

func decodeDocument(doc string) (*pattern.Pattern, error) {
	var p pattern.Pattern
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
