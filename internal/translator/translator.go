// Package translator is the boundary to the external language-model
// provider that turns a natural-language question into SQL. Generation
// quality is the provider's problem; everything it emits still passes the
// query validator before execution.
package translator

import (
	"context"
)

type Translator interface {
	// Translate produces a single SQL statement for the question given the
	// schema summary. The result is untrusted input to the validator.
	Translate(ctx context.Context, question, schema string) (string, error)

	// Explain summarizes an executed query's results in plain language.
	Explain(ctx context.Context, question, sql, summary string) (string, error)
}
