package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

// LoadFromPostgres streams every (id, body) row of table into idx under
// field. The table is expected to look like:
//
//	CREATE TABLE documents (
//	    id   TEXT NOT NULL,
//	    body TEXT NOT NULL
//	);
func LoadFromPostgres(ctx context.Context, db *sql.DB, table, field string, idx *MemoryIndex) (int, error) {
	start := time.Now()
	query := fmt.Sprintf(`SELECT id, body FROM %s ORDER BY id`, pq.QuoteIdentifier(table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return 0, apperrors.IOf("querying documents from %s: %v", table, err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return loaded, apperrors.IOf("scanning document row: %v", err)
		}
		idx.AddDocument(id, map[string]string{field: body})
		loaded++
	}
	if err := rows.Err(); err != nil {
		return loaded, apperrors.IOf("iterating document rows: %v", err)
	}
	slog.Default().With("component", "index-loader").Info("documents loaded",
		"table", table,
		"field", field,
		"docs", loaded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return loaded, nil
}
