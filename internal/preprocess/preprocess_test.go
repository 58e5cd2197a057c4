package preprocess

import (
	"compress/gzip"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"go.uber.org/zap"
)

func TestParseLine(t *testing.T) {
	g, freq, ok := parseLine("dog runs\t1950,3\t1999,7\t1700,99")
	require.True(t, ok)
	require.Equal(t, "dog runs", g)
	require.Equal(t, int64(3), freq[1950-1800])
	require.Equal(t, int64(7), freq[1999-1800])
	require.Equal(t, int64(0), freq[0]) // 1700 is out of range, dropped

	_, _, ok = parseLine("no-tab-field")
	require.False(t, ok)
}

func TestOutputName(t *testing.T) {
	require.Equal(t, "part1.parquet", outputName("part1.tsv"))
	require.Equal(t, "part1.parquet", outputName("part1.tsv.gz"))
}

func writeRawFile(t *testing.T, dir, name string, gzipped bool, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	if !gzipped {
		for _, l := range lines {
			_, err := f.WriteString(l + "\n")
			require.NoError(t, err)
		}
		return
	}

	gw := gzip.NewWriter(f)
	for _, l := range lines {
		_, err := gw.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gw.Close())
}

func TestRunConvertsAndWritesParquet(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(inputDir, "1"), 0o755))
	writeRawFile(t, filepath.Join(inputDir, "1"), "part.tsv", false, "dog\t1950,3\t1951,4")

	logger := zap.NewNop()
	require.NoError(t, Run(Options{InputDir: inputDir, OutputDir: outputDir}, logger))

	outPath := filepath.Join(outputDir, "n=1", "part.parquet")
	require.FileExists(t, outPath)

	fr, err := local.NewLocalFileReader(outPath)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(row), 4)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.EqualValues(t, 1, pr.GetNumRows())
	rows := make([]row, 1)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "dog", rows[0].Ngram)
	require.Equal(t, int64(3), rows[0].Frequency[1950-1800])
}

func TestRunSkipsExistingOutputWithContinue(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(inputDir, "1"), 0o755))
	writeRawFile(t, filepath.Join(inputDir, "1"), "part.tsv", false, "dog\t1950,3")
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "n=1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "n=1", "part.parquet"), []byte("sentinel"), 0o644))

	logger := zap.NewNop()
	require.NoError(t, Run(Options{InputDir: inputDir, OutputDir: outputDir, Continue: true}, logger))

	content, err := os.ReadFile(filepath.Join(outputDir, "n=1", "part.parquet"))
	require.NoError(t, err)
	require.Equal(t, "sentinel", string(content))
}

func TestRunMaterializesDuckDBUnion(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(inputDir, "1"), 0o755))
	writeRawFile(t, filepath.Join(inputDir, "1"), "part.tsv", false, "dog\t1950,3")

	logger := zap.NewNop()
	require.NoError(t, Run(Options{InputDir: inputDir, OutputDir: outputDir, DuckDB: true}, logger))

	db, err := sql.Open("sqlite3", outputDir+".db")
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM ngrams WHERE ngram = 'dog'`).Scan(&count))
	require.Equal(t, 1, count)
}
