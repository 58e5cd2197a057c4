// Package preprocess converts raw tab-separated n-gram frequency files
// into the columnar layout the optimizer's loader reads.
package preprocess

import (
	"bufio"
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"

	"github.com/armchr/ngcompress/internal/ngram"
)

// row is the on-disk shape written by preprocess and read by the columnar
// loader backend: one n-gram and its sparse-then-densified frequency list.
type row struct {
	Ngram     string  `parquet:"name=ngram, type=BYTE_ARRAY, convertedtype=UTF8"`
	Frequency []int64 `parquet:"name=frequency, type=INT64, repetitiontype=REPEATED"`
}

// Options mirrors the "preprocess" subcommand's flags.
type Options struct {
	InputDir  string
	OutputDir string
	Gzip      bool
	Continue  bool
	DuckDB    bool
}

// Run converts every raw file under InputDir/1 .. InputDir/5 into
// OutputDir/n=<k>/<name>.parquet, then optionally materializes the union
// into OutputDir + ".db" when DuckDB is set (the `-d`/`--duckdb` flag,
// substituting a SQLite union for the unavailable embedded engine — see
// DESIGN.md).
func Run(opts Options, logger *zap.Logger) error {
	for n := 1; n <= 5; n++ {
		if err := processOrder(opts, n, logger); err != nil {
			return fmt.Errorf("processing order n=%d: %w", n, err)
		}
	}

	if opts.DuckDB {
		if err := materializeUnion(opts); err != nil {
			return fmt.Errorf("materializing union database: %w", err)
		}
	}
	return nil
}

func processOrder(opts Options, n int, logger *zap.Logger) error {
	inDir := filepath.Join(opts.InputDir, strconv.Itoa(n))
	entries, err := os.ReadDir(inDir)
	if os.IsNotExist(err) {
		logger.Debug("no input directory for order, skipping", zap.Int("n", n))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading input dir %q: %w", inDir, err)
	}

	outDir := filepath.Join(opts.OutputDir, fmt.Sprintf("n=%d", n))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %q: %w", outDir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		outPath := filepath.Join(outDir, outputName(e.Name()))
		if opts.Continue {
			if _, err := os.Stat(outPath); err == nil {
				logger.Debug("skipping existing output file", zap.String("path", outPath))
				continue
			}
		}
		if err := convertFile(filepath.Join(inDir, e.Name()), outPath, opts.Gzip); err != nil {
			return fmt.Errorf("converting %q: %w", e.Name(), err)
		}
	}
	return nil
}

// outputName replaces a raw file's extension (together with a trailing .gz,
// if any) with .parquet, preserving its base name.
func outputName(name string) string {
	base := strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".parquet"
}

func convertFile(inPath, outPath string, gzipped bool) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening %q: %w", inPath, err)
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream for %q: %w", inPath, err)
		}
		defer gr.Close()
		r = gr
	}

	fw, err := local.NewLocalFileWriter(outPath)
	if err != nil {
		return fmt.Errorf("opening output %q: %w", outPath, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(row), 4)
	if err != nil {
		return fmt.Errorf("creating parquet writer for %q: %w", outPath, err)
	}
	pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		g, freq, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if err := pw.Write(row{Ngram: g, Frequency: freq[:]}); err != nil {
			return fmt.Errorf("writing row for %q: %w", g, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %q: %w", inPath, err)
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalizing %q: %w", outPath, err)
	}
	return nil
}

// parseLine parses one raw-input line: `ngram \t
// year,frequency[,extra…] \t …`. Years outside 1800..=2000 are dropped;
// unreported years default to 0. A line with no tab-separated field after
// the ngram is reported as not-ok and skipped by the caller.
func parseLine(line string) (string, [ngram.Years]int64, bool) {
	var freq [ngram.Years]int64
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return "", freq, false
	}

	for _, col := range fields[1:] {
		parts := strings.Split(col, ",")
		if len(parts) < 2 {
			continue
		}
		year, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		count, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || count < 0 {
			continue
		}
		idx := year - ngram.FirstYear
		if idx < 0 || idx >= ngram.Years {
			continue
		}
		freq[idx] = count
	}

	return fields[0], freq, true
}

// materializeUnion writes every columnar file's rows into OutputDir+".db",
// a single SQLite file with table ngrams(ngram, n, frequency) — the Go
// substitute for the original's DuckDB-union output (see DESIGN.md).
func materializeUnion(opts Options) error {
	dbPath := opts.OutputDir + ".db"
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("creating %q: %w", dbPath, err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ngrams (ngram TEXT, n INTEGER, frequency TEXT)`); err != nil {
		return fmt.Errorf("creating ngrams table: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO ngrams (ngram, n, frequency) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for n := 1; n <= 5; n++ {
		partDir := filepath.Join(opts.OutputDir, fmt.Sprintf("n=%d", n))
		entries, err := os.ReadDir(partDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading partition dir %q: %w", partDir, err)
		}

		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".parquet" {
				continue
			}
			if err := insertFileRows(stmt, filepath.Join(partDir, e.Name()), n); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertFileRows(stmt *sql.Stmt, path string, n int) error {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return fmt.Errorf("opening %q: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(row), 4)
	if err != nil {
		return fmt.Errorf("reading schema of %q: %w", path, err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	rows := make([]row, numRows)
	if err := pr.Read(&rows); err != nil {
		return fmt.Errorf("reading rows from %q: %w", path, err)
	}

	for _, r := range rows {
		if _, err := stmt.Exec(r.Ngram, n, encodeCSV(r.Frequency)); err != nil {
			return fmt.Errorf("inserting row for %q: %w", r.Ngram, err)
		}
	}
	return nil
}

func encodeCSV(freq []int64) string {
	parts := make([]string, len(freq))
	for i, v := range freq {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}
