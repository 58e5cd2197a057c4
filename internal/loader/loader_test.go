package loader

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	_ "github.com/mattn/go-sqlite3"

	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/ngram"
)

// fixtureRows is a tiny three-n-gram corpus shared by both backend fixtures:
// one bigram and its two unigram children, so Frequencies has something to
// resolve via the child enumerator.
var fixtureRows = map[int][]struct {
	ngram string
	freq  []int64
}{
	1: {{"dog", freqOf(3)}, {"runs", freqOf(5)}},
	2: {{"dog runs", freqOf(8)}},
}

func freqOf(first int64) []int64 {
	out := make([]int64, ngram.Years)
	out[0] = first
	return out
}

func newSQLiteFixture(t *testing.T) *SQLiteLoader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")

	setup, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = setup.Exec(`CREATE TABLE ngrams (ngram TEXT, n INTEGER, frequency TEXT)`)
	require.NoError(t, err)
	for n, rows := range fixtureRows {
		for _, r := range rows {
			_, err := setup.Exec(`INSERT INTO ngrams (ngram, n, frequency) VALUES (?, ?, ?)`,
				r.ngram, n, encodeCSVFrequency(decodeFrequency(r.freq)))
			require.NoError(t, err)
		}
	}
	require.NoError(t, setup.Close())

	l, err := NewSQLiteLoader(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func newParquetFixture(t *testing.T) *ParquetLoader {
	t.Helper()
	dir := t.TempDir()

	for n, rows := range fixtureRows {
		partDir := filepath.Join(dir, "n="+itoa(n))
		require.NoError(t, os.MkdirAll(partDir, 0o755))

		fw, err := local.NewLocalFileWriter(filepath.Join(partDir, "part-0.parquet"))
		require.NoError(t, err)
		pw, err := writer.NewParquetWriter(fw, new(row), 4)
		require.NoError(t, err)

		for _, r := range rows {
			require.NoError(t, pw.Write(row{Ngram: r.ngram, Frequency: r.freq}))
		}
		require.NoError(t, pw.WriteStop())
		require.NoError(t, fw.Close())
	}

	return NewParquetLoader(dir, nil)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestBackendsAgreeOnCount(t *testing.T) {
	ctx := context.Background()
	for name, l := range map[string]Loader{
		"sqlite":  newSQLiteFixture(t),
		"parquet": newParquetFixture(t),
	} {
		t.Run(name, func(t *testing.T) {
			n, err := l.Count(ctx, 1)
			require.NoError(t, err)
			require.Equal(t, uint64(2), n)

			n, err = l.Count(ctx, 2)
			require.NoError(t, err)
			require.Equal(t, uint64(1), n)
		})
	}
}

func TestBackendsAgreeOnSlice(t *testing.T) {
	ctx := context.Background()
	for name, l := range map[string]Loader{
		"sqlite":  newSQLiteFixture(t),
		"parquet": newParquetFixture(t),
	} {
		t.Run(name, func(t *testing.T) {
			chunk, err := l.Slice(ctx, 10, 0, 1)
			require.NoError(t, err)
			require.Len(t, chunk, 2)
			f, ok := chunk["dog"]
			require.True(t, ok)
			require.Equal(t, 3.0, f[0])
		})
	}
}

func TestBackendsAgreeOnFrequencies(t *testing.T) {
	ctx := context.Background()
	accepted := acceptedset.New(false)

	for name, l := range map[string]Loader{
		"sqlite":  newSQLiteFixture(t),
		"parquet": newParquetFixture(t),
	} {
		t.Run(name, func(t *testing.T) {
			chunk := Chunk{"dog runs": decodeFrequency(freqOf(8))}
			resolved, err := l.Frequencies(ctx, chunk, children.FullRecursive, accepted)
			require.NoError(t, err)

			require.Equal(t, 8.0, resolved["dog runs"][0])
			require.Equal(t, 3.0, resolved["dog"][0])
			require.Equal(t, 5.0, resolved["runs"][0])
		})
	}
}
