package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/trade_alert_relay/internal/domain"
)

// SQLiteJournal records every dispatched instruction with its delivery
// outcome so operators can review what was sent and what exhausted its
// retries.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	query := `CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT,
		order_type TEXT,
		label TEXT,
		url TEXT,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);`
	if _, err := j.db.Exec(query); err != nil {
		return fmt.Errorf("failed to init dispatches schema: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) Record(ctx context.Context, rec *domain.DispatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query := `INSERT INTO dispatches (id, ticker, action, quantity, price, order_type, label, url, status, attempts, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, query,
		rec.ID, rec.Ticker, string(rec.Action), rec.Quantity, rec.Price,
		rec.OrderType, rec.Label, rec.URL, rec.Status, rec.Attempts, rec.CreatedAt)
	return err
}

func (j *SQLiteJournal) ListRecent(ctx context.Context, limit int) ([]*domain.DispatchRecord, error) {
	query := `SELECT id, ticker, action, quantity, price, order_type, label, url, status, attempts, created_at
			  FROM dispatches ORDER BY created_at DESC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DispatchRecord
	for rows.Next() {
		var r domain.DispatchRecord
		var action string
		if err := rows.Scan(&r.ID, &r.Ticker, &action, &r.Quantity, &r.Price,
			&r.OrderType, &r.Label, &r.URL, &r.Status, &r.Attempts, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Action = domain.Action(action)
		records = append(records, &r)
	}
	return records, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
