package model

import "time"

// QueryRequest is what the API layer hands to the pipeline: an
// authenticated identity plus either raw SQL or a natural-language question.
type QueryRequest struct {
	UserID   string
	Role     Role
	SQL      string
	Question string
}

// Row maps field name to value for one result row.
type Row map[string]interface{}

// ResultSet is the ordered result of one warehouse execution. Columns
// preserves the warehouse's column order; Rows may be truncated at the
// configured maximum.
type ResultSet struct {
	Columns   []string
	Rows      []Row
	Truncated bool
	Elapsed   time.Duration
}

// ColumnInfo describes one column of a warehouse table.
type ColumnInfo struct {
	Name string `json:"name" db:"column_name"`
	Type string `json:"type" db:"data_type"`
}

// QueryResponse is the redacted, caller-facing result. RedactedFields lists
// the PHI columns whose values were replaced by ciphertext; it is empty when
// the caller was entitled to cleartext PHI.
type QueryResponse struct {
	SQL            string   `json:"sql,omitempty"`
	Columns        []string `json:"columns"`
	Rows           []Row    `json:"rows"`
	Count          int      `json:"count"`
	Truncated      bool     `json:"truncated,omitempty"`
	ElapsedMS      int64    `json:"elapsed_ms"`
	RedactedFields []string `json:"redacted_fields,omitempty"`
	Explanation    string   `json:"explanation,omitempty"`
}
