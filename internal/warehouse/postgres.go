package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/securequery/agent-api/internal/model"
)

const (
	DefaultMaxRows = 1000
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	MaxRows int
	Timeout time.Duration
}

// PostgresEngine executes read queries against a Postgres-compatible
// warehouse over a connection that should be provisioned read-only; the
// query validator upstream is policy, the connection grant is the backstop.
type PostgresEngine struct {
	db      *sqlx.DB
	maxRows int
	timeout time.Duration
}

func NewPostgresEngine(db *sqlx.DB, cfg Config) *PostgresEngine {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &PostgresEngine{
		db:      db,
		maxRows: cfg.MaxRows,
		timeout: cfg.Timeout,
	}
}

func (e *PostgresEngine) Execute(ctx context.Context, query string) (*model.ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("warehouse query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	rs := &model.ResultSet{Columns: columns}
	for rows.Next() {
		if len(rs.Rows) >= e.maxRows {
			rs.Truncated = true
			break
		}
		row := make(model.Row, len(columns))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		normalizeRow(row)
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse result iteration failed: %w", err)
	}

	rs.Elapsed = time.Since(start)
	return rs, nil
}

func (e *PostgresEngine) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var tables []string
	err := e.db.SelectContext(ctx, &tables, `
        SELECT table_name FROM information_schema.tables
        WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
        ORDER BY table_name
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (e *PostgresEngine) DescribeTable(ctx context.Context, table string) ([]model.ColumnInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var columns []model.ColumnInfo
	err := e.db.SelectContext(ctx, &columns, `
        SELECT column_name, data_type FROM information_schema.columns
        WHERE table_schema = 'public' AND table_name = $1
        ORDER BY ordinal_position
    `, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return columns, nil
}

// normalizeRow converts []byte cells to string so results serialize as text
// rather than base64.
func normalizeRow(row model.Row) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}
