package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/ngram"
)

// SQLiteLoader reads the embedded-DB backend: a single file holding table
// ngrams(ngram TEXT, n INTEGER, frequency TEXT), frequency being a
// comma-separated variable-length integer list.
type SQLiteLoader struct {
	db *sql.DB
}

// NewSQLiteLoader opens path read-only.
func NewSQLiteLoader(path string) (*SQLiteLoader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("opening embedded db %q: %w", path, err)
	}
	return &SQLiteLoader{db: db}, nil
}

// Close releases the underlying database handle.
func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}

// Count implements Loader.
func (l *SQLiteLoader) Count(ctx context.Context, n int) (uint64, error) {
	var count uint64
	err := l.db.QueryRowContext(ctx, `SELECT count(*) FROM ngrams WHERE n = ?`, n).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting n=%d: %w", n, err)
	}
	return count, nil
}

// Slice implements Loader. Rows are ordered by ngram before LIMIT/OFFSET
// is applied, so pages are stable across calls as long as the table isn't
// concurrently written, which holds for the optimizer's read-only run.
func (l *SQLiteLoader) Slice(ctx context.Context, limit, offset uint64, n int) (Chunk, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT ngram, frequency FROM ngrams WHERE n = ? ORDER BY ngram LIMIT ? OFFSET ?`,
		n, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("slicing n=%d: %w", n, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Frequencies implements Loader, batching lookups per order with an
// IN (...) predicate.
func (l *SQLiteLoader) Frequencies(ctx context.Context, chunk Chunk, policy children.Policy, accepted *acceptedset.Set) (map[ngram.NGram]ngram.Freq, error) {
	wanted := wantedChildren(chunk, policy, accepted)
	byOrder := groupByOrder(wanted)

	out := make(map[ngram.NGram]ngram.Freq, len(wanted))
	for g, f := range chunk {
		out[g] = f
	}

	for n, grams := range byOrder {
		var toFetch []ngram.NGram
		for _, g := range grams {
			if _, ok := out[g]; !ok {
				toFetch = append(toFetch, g)
			}
		}
		if len(toFetch) == 0 {
			continue
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(toFetch)), ",")
		args := make([]any, 0, len(toFetch)+1)
		args = append(args, n)
		for _, g := range toFetch {
			args = append(args, string(g))
		}

		query := fmt.Sprintf(`SELECT ngram, frequency FROM ngrams WHERE n = ? AND ngram IN (%s)`, placeholders)
		rows, err := l.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("batch-fetching n=%d (%d ngrams): %w", n, len(toFetch), err)
		}

		found, err := scanRows(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for g, f := range found {
			out[g] = f
		}
	}

	return out, nil
}

func scanRows(rows *sql.Rows) (Chunk, error) {
	out := make(Chunk)
	for rows.Next() {
		var g, freqCSV string
		if err := rows.Scan(&g, &freqCSV); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out[ngram.NGram(g)] = decodeCSVFrequency(freqCSV)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// decodeCSVFrequency parses a comma-separated integer list into a Freq.
// Malformed or non-integer entries decode as 0.0.
func decodeCSVFrequency(csv string) ngram.Freq {
	var f ngram.Freq
	if csv == "" {
		return f
	}
	parts := strings.Split(csv, ",")
	for i, p := range parts {
		if i >= ngram.Years {
			break
		}
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		f[i] = float64(v)
	}
	return f
}

// encodeCSVFrequency is the writer-side counterpart of decodeCSVFrequency,
// producing the same layout preprocess's --duckdb materialization stores.
func encodeCSVFrequency(f ngram.Freq) string {
	parts := make([]string, len(f))
	for i, v := range f {
		parts[i] = strconv.FormatInt(int64(v), 10)
	}
	return strings.Join(parts, ",")
}
