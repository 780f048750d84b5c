// Package warehouse is the boundary to the external analytics query engine.
// The compliance core only ever sees an ordered result set; execution
// details stay behind the Engine interface.
package warehouse

import (
	"context"

	"github.com/securequery/agent-api/internal/model"
)

type Engine interface {
	// Execute runs a validated read query. Implementations must bound the
	// call with their configured timeout so a slow warehouse degrades to an
	// error rather than hanging the request.
	Execute(ctx context.Context, query string) (*model.ResultSet, error)

	// ListTables returns the table names visible to the agent.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable returns the column layout of one table.
	DescribeTable(ctx context.Context, table string) ([]model.ColumnInfo, error)
}
