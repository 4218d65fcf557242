package loader

import (
	"database/sql"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/weft/internal/dataset"
)

// LoadSQLite reads collection-job output from a SQLite database and puts one
// payload per dataset. Jobs append one row per record to the results table:
//
//	CREATE TABLE results (dataset TEXT NOT NULL, record TEXT NOT NULL)
//
// Records keep their collection order (rowid). Returns the number of
// datasets loaded.
func LoadSQLite(store *dataset.Store, dbPath string) (int, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT dataset, record FROM results ORDER BY rowid")
	if err != nil {
		return 0, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	payloads := make(map[string][]any)
	var order []string
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return 0, fmt.Errorf("scan row: %w", err)
		}
		record, err := oj.ParseString(raw)
		if err != nil {
			return 0, fmt.Errorf("parse record json: %w", err)
		}
		if _, seen := payloads[name]; !seen {
			order = append(order, name)
		}
		payloads[name] = append(payloads[name], record)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate rows: %w", err)
	}

	for _, name := range order {
		store.Put(name, payloads[name])
	}
	return len(order), nil
}
