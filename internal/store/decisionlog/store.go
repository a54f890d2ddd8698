package decisionlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"arena/internal/decision"

	_ "modernc.org/sqlite"
)

// DecisionLogStore 记录每次模型调用的结果，方便排查与前端回放。
type DecisionLogStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var _ decision.Journal = (*DecisionLogStore)(nil)

// DecisionLogRecord 是一条持久化的决策日志。
type DecisionLogRecord struct {
	ID         int64   `json:"id"`
	Timestamp  int64   `json:"ts"`
	Agent      string  `json:"agent"`
	ProviderID string  `json:"provider_id"`
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol,omitempty"`
	Reasoning  string  `json:"reasoning"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
	RawOutput  string  `json:"raw_output,omitempty"`
	Error      string  `json:"error,omitempty"`
	LatencyMS  int64   `json:"latency_ms"`
}

// Query 用于筛选日志，空字段表示不过滤。
type Query struct {
	Agent    string
	Provider string
	Action   string
	Limit    int
	Offset   int
}

func NewDecisionLogStore(path string) (*DecisionLogStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DecisionLogStore{db: db, path: path}, nil
}

func (s *DecisionLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS arena_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			agent TEXT NOT NULL,
			provider_id TEXT,
			action TEXT NOT NULL,
			symbol TEXT,
			reasoning TEXT,
			strategy TEXT,
			confidence REAL DEFAULT 0,
			raw_output TEXT,
			error TEXT,
			latency_ms INTEGER DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_arena_decisions_agent_ts ON arena_decisions(agent, ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_arena_decisions_provider ON arena_decisions(provider_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *DecisionLogStore) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("decision log store 未初始化")
	}
	return s.db, nil
}

// Record 实现 decision.Journal。
func (s *DecisionLogStore) Record(ctx context.Context, e decision.JournalEntry) error {
	_, err := s.Insert(ctx, DecisionLogRecord{
		Timestamp:  e.CreatedAt.UnixMilli(),
		Agent:      e.Agent,
		ProviderID: e.Provider,
		Action:     string(e.Action),
		Symbol:     e.Symbol,
		Reasoning:  e.Reasoning,
		Strategy:   e.Strategy,
		Confidence: e.Confidence,
		RawOutput:  e.RawOutput,
		Error:      e.Error,
		LatencyMS:  e.Latency.Milliseconds(),
	})
	return err
}

func (s *DecisionLogStore) Insert(ctx context.Context, rec DecisionLogRecord) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	if rec.Timestamp <= 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO arena_decisions
			(ts, agent, provider_id, action, symbol, reasoning, strategy, confidence, raw_output, error, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp,
		strings.TrimSpace(rec.Agent),
		rec.ProviderID,
		strings.ToUpper(strings.TrimSpace(rec.Action)),
		rec.Symbol,
		rec.Reasoning,
		rec.Strategy,
		rec.Confidence,
		rec.RawOutput,
		rec.Error,
		rec.LatencyMS,
	)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

func buildFilter(q Query) (string, []interface{}) {
	var args []interface{}
	var sb strings.Builder
	sb.WriteString(" WHERE 1=1")
	if v := strings.TrimSpace(q.Agent); v != "" {
		sb.WriteString(" AND agent=?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Provider); v != "" {
		sb.WriteString(" AND provider_id=?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Action); v != "" {
		sb.WriteString(" AND action=?")
		args = append(args, strings.ToUpper(v))
	}
	return sb.String(), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(scanner rowScanner) (DecisionLogRecord, error) {
	var (
		rec       DecisionLogRecord
		provider  sql.NullString
		symbol    sql.NullString
		reasoning sql.NullString
		strategy  sql.NullString
		raw       sql.NullString
		errStr    sql.NullString
	)
	if err := scanner.Scan(&rec.ID, &rec.Timestamp, &rec.Agent, &provider, &rec.Action, &symbol,
		&reasoning, &strategy, &rec.Confidence, &raw, &errStr, &rec.LatencyMS); err != nil {
		return rec, err
	}
	rec.ProviderID = provider.String
	rec.Symbol = symbol.String
	rec.Reasoning = reasoning.String
	rec.Strategy = strategy.String
	rec.RawOutput = raw.String
	rec.Error = errStr.String
	return rec, nil
}

// List 按时间倒序返回日志。
func (s *DecisionLogStore) List(ctx context.Context, q Query) ([]DecisionLogRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	filterSQL, args := buildFilter(q)
	query := `SELECT id, ts, agent, provider_id, action, symbol, reasoning, strategy, confidence, raw_output, error, latency_ms
		FROM arena_decisions` + filterSQL + " ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]DecisionLogRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func (s *DecisionLogStore) Count(ctx context.Context, q Query) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	filterSQL, args := buildFilter(q)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arena_decisions`+filterSQL, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
