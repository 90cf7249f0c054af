package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"czsc/internal/logger"
	"czsc/internal/market"
)

// SQLiteBarStore 把 K 线持久化到 SQLite，主键为 symbol+freq+ts。
type SQLiteBarStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteBarStore 打开（或创建）数据库并执行迁移。
func NewSQLiteBarStore(path string) (*SQLiteBarStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite 路径不能为空")
	}
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建目录 %s 失败: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &SQLiteBarStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Debugf("sqlite bar store opened: %s", path)
	return s, nil
}

func (s *SQLiteBarStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT    NOT NULL,
			freq   TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			vol    REAL    DEFAULT 0,
			amount REAL    DEFAULT 0,
			PRIMARY KEY (symbol, freq, ts)
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteBarStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("bar store 已关闭")
	}
	return db, nil
}

// Put 在一个事务里写入；相同时间戳覆盖原值。
func (s *SQLiteBarStore) Put(ctx context.Context, symbol, freq string, bars []market.Candle) error {
	if symbol == "" || freq == "" {
		return errEmptyKey
	}
	if len(bars) == 0 {
		return nil
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO bars (symbol, freq, ts, open, high, low, close, vol, amount)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(symbol, freq, ts) DO UPDATE SET
            open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close,
            vol=excluded.vol, amount=excluded.amount`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, freq, b.Time.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount); err != nil {
			tx.Rollback()
			return fmt.Errorf("写入 %s@%s %s 失败: %w", symbol, freq, b.Time.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// Get 按时间升序返回全部 K 线。
func (s *SQLiteBarStore) Get(ctx context.Context, symbol, freq string) ([]market.Candle, error) {
	return s.query(ctx, `
        SELECT ts, open, high, low, close, vol, amount FROM bars
        WHERE symbol=? AND freq=? ORDER BY ts ASC`, symbol, freq)
}

// Export 返回最近 limit 根 K 线（按时间升序）
func (s *SQLiteBarStore) Export(ctx context.Context, symbol, freq string, limit int) ([]market.Candle, error) {
	if symbol == "" || freq == "" {
		return nil, errEmptyKey
	}
	if limit <= 0 {
		return nil, nil
	}
	return s.query(ctx, `
        SELECT ts, open, high, low, close, vol, amount FROM (
            SELECT * FROM bars WHERE symbol=? AND freq=? ORDER BY ts DESC LIMIT ?
        ) ORDER BY ts ASC`, symbol, freq, limit)
}

func (s *SQLiteBarStore) query(ctx context.Context, q string, args ...any) ([]market.Candle, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	symbol, _ := args[0].(string)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Candle
	for rows.Next() {
		var (
			ts int64
			c  market.Candle
		)
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Amount); err != nil {
			return nil, err
		}
		c.Symbol = symbol
		c.Time = time.UnixMilli(ts).UTC()
		c.ID = int64(len(out) + 1)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteBarStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

var (
	_ BarStore         = (*SQLiteBarStore)(nil)
	_ SnapshotExporter = (*SQLiteBarStore)(nil)
	_ BarStore         = (*MemoryBarStore)(nil)
	_ SnapshotExporter = (*MemoryBarStore)(nil)
)
