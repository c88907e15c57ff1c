// 包 history 记录每次运行与每本书的抓取结果（SQLite），用于排查长期失败的书。
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run 为一次运行的汇总。
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Waiting    int
	Uploading  int
	Failed     int
	Removed    int
	Ledger     int
}

// Attempt 为单本书的一次抓取结果。
type Attempt struct {
	RunID      string
	Collection string
	FanqieID   string
	Outcome    string
	StatusCode int
	CreatedAt  time.Time
}

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close 关闭数据库连接。
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            started_at TIMESTAMP,
            finished_at TIMESTAMP,
            waiting INTEGER DEFAULT 0,
            uploading INTEGER DEFAULT 0,
            failed INTEGER DEFAULT 0,
            removed INTEGER DEFAULT 0,
            ledger INTEGER DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS attempts (
            run_id TEXT,
            collection TEXT,
            fanqie_id TEXT,
            outcome TEXT,
            status_code INTEGER,
            created_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS attempts_fanqie_id ON attempts(fanqie_id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// BeginRun 插入一条新的运行记录并返回其 ID。
func (s *SQLite) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, started_at) VALUES(?, ?)`, id, time.Now())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Record 写入单次抓取结果。
func (s *SQLite) Record(ctx context.Context, a Attempt) error {
	if a.RunID == "" {
		return errors.New("attempt.run_id required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts(run_id, collection, fanqie_id, outcome, status_code, created_at)
        VALUES(?,?,?,?,?,?)`,
		a.RunID, a.Collection, a.FanqieID, a.Outcome, a.StatusCode, nowOr(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.FanqieID, err)
	}
	return nil
}

// FinishRun 回写运行汇总。
func (s *SQLite) FinishRun(ctx context.Context, r Run) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at=?, waiting=?, uploading=?, failed=?, removed=?, ledger=? WHERE id=?`,
		nowOr(r.FinishedAt), r.Waiting, r.Uploading, r.Failed, r.Removed, r.Ledger, r.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: no such run", r.ID)
	}
	return nil
}

// Recent 返回最近 limit 次运行，按开始时间倒序。
func (s *SQLite) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, waiting, uploading, failed, removed, ledger
        FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started, finished sql.NullTime
		if err := rows.Scan(&r.ID, &started, &finished, &r.Waiting, &r.Uploading, &r.Failed, &r.Removed, &r.Ledger); err != nil {
			return nil, fmt.Errorf("scan runs: %w", err)
		}
		if started.Valid {
			r.StartedAt = started.Time
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// Attempts 返回某本书最近 limit 条抓取记录。
func (s *SQLite) Attempts(ctx context.Context, fanqieID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, collection, fanqie_id, outcome, status_code, created_at
        FROM attempts WHERE fanqie_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, fanqieID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		var created sql.NullTime
		if err := rows.Scan(&a.RunID, &a.Collection, &a.FanqieID, &a.Outcome, &a.StatusCode, &created); err != nil {
			return nil, fmt.Errorf("scan attempts: %w", err)
		}
		if created.Valid {
			a.CreatedAt = created.Time
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
