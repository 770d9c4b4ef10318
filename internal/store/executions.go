package store

import (
	"context"
	"fmt"
	"time"
)

// ExecutionRecord 为一次分配调用的落库快照。
type ExecutionRecord struct {
	ID            int64
	Side          string
	Algorithm     string
	RequestedSize float64
	FilledVolume  float64
	TotalFees     string
	Total         string
	AveragePrice  string
	Fulfillment   float64
	CreatedAt     time.Time
	Fills         []FillRecord
}

// FillRecord 为执行计划中的单笔成交。
type FillRecord struct {
	Venue  string
	Price  float64
	Volume float64
}

const executionSchema = `
CREATE TABLE IF NOT EXISTS executions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	side TEXT NOT NULL,
	algorithm TEXT NOT NULL,
	requested_size REAL NOT NULL,
	filled_volume REAL NOT NULL,
	total_fees TEXT NOT NULL,
	total TEXT NOT NULL,
	average_price TEXT NOT NULL,
	fulfillment REAL NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS execution_fills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES executions(id),
	venue TEXT NOT NULL,
	price REAL NOT NULL,
	volume REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_fills_execution_id ON execution_fills(execution_id);
`

// InitExecutionSchema 建立执行历史表结构。
func (s *Store) InitExecutionSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, executionSchema); err != nil {
		return fmt.Errorf("store: 初始化执行历史表失败: %w", err)
	}
	return nil
}

// SaveExecution 记录一次分配调用及其全部成交。
func (s *Store) SaveExecution(ctx context.Context, record ExecutionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO executions (side, algorithm, requested_size, filled_volume, total_fees, total, average_price, fulfillment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Side, record.Algorithm, record.RequestedSize, record.FilledVolume,
		record.TotalFees, record.Total, record.AveragePrice, record.Fulfillment,
		record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: 写入执行记录失败: %w", err)
	}

	executionID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: 获取执行记录ID失败: %w", err)
	}

	for _, fill := range record.Fills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO execution_fills (execution_id, venue, price, volume) VALUES (?, ?, ?, ?)`,
			executionID, fill.Venue, fill.Price, fill.Volume,
		); err != nil {
			return fmt.Errorf("store: 写入成交明细失败: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交事务失败: %w", err)
	}
	return nil
}

// RecentExecutions 按时间倒序返回最近的执行记录（不含成交明细）。
func (s *Store) RecentExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, side, algorithm, requested_size, filled_volume, total_fees, total, average_price, fulfillment, created_at
		 FROM executions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: 查询执行历史失败: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		var record ExecutionRecord
		if err := rows.Scan(
			&record.ID, &record.Side, &record.Algorithm,
			&record.RequestedSize, &record.FilledVolume,
			&record.TotalFees, &record.Total, &record.AveragePrice,
			&record.Fulfillment, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: 读取执行记录失败: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历执行历史失败: %w", err)
	}

	return records, nil
}
