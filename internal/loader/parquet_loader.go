package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"go.uber.org/zap"

	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/ngram"
)

// row is the on-disk shape of one n-gram partition row (the layout
// preprocess writes), shared by Slice, the first-ngram index and
// scanFileFor.
type row struct {
	Ngram     string  `parquet:"name=ngram, type=BYTE_ARRAY, convertedtype=UTF8"`
	Frequency []int64 `parquet:"name=frequency, type=INT64, repetitiontype=REPEATED"`
}

// fileEntry is one file's sorted-first-ngram index entry.
type fileEntry struct {
	firstNgram ngram.NGram
	path       string
}

// ParquetLoader reads the columnar-file backend: a directory partitioned
// into n=<k>/ subdirectories of parquet files.
type ParquetLoader struct {
	InputDir string
	Logger   *zap.Logger

	indexMu sync.Mutex
	index   map[int][]fileEntry // memoized per ParquetLoader instance (one per input path)
}

// NewParquetLoader builds a loader rooted at inputDir.
func NewParquetLoader(inputDir string, logger *zap.Logger) *ParquetLoader {
	return &ParquetLoader{InputDir: inputDir, Logger: logger, index: make(map[int][]fileEntry)}
}

func (l *ParquetLoader) partitionDir(n int) string {
	return filepath.Join(l.InputDir, fmt.Sprintf("n=%d", n))
}

func (l *ParquetLoader) partitionFiles(n int) ([]string, error) {
	dir := l.partitionDir(n)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading partition dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".parquet" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (l *ParquetLoader) openReader(path string) (*reader.ParquetReader, func(), error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %q: %w", path, err)
	}
	pr, err := reader.NewParquetReader(fr, new(row), 4)
	if err != nil {
		fr.Close()
		return nil, nil, fmt.Errorf("reading parquet schema of %q: %w", path, err)
	}
	return pr, func() {
		pr.ReadStop()
		fr.Close()
	}, nil
}

// Count implements Loader.
func (l *ParquetLoader) Count(_ context.Context, n int) (uint64, error) {
	files, err := l.partitionFiles(n)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, path := range files {
		pr, closeFn, err := l.openReader(path)
		if err != nil {
			return 0, err
		}
		total += uint64(pr.GetNumRows())
		closeFn()
	}
	return total, nil
}

// Slice implements Loader. Files are visited in sorted-name order and rows
// within a file in on-disk order, which is stable across paging calls for
// a fixed set of input files.
func (l *ParquetLoader) Slice(_ context.Context, limit, offset uint64, n int) (Chunk, error) {
	files, err := l.partitionFiles(n)
	if err != nil {
		return nil, err
	}

	out := make(Chunk, limit)
	var seen uint64
	remaining := limit

	for _, path := range files {
		if remaining == 0 {
			break
		}
		pr, closeFn, err := l.openReader(path)
		if err != nil {
			return nil, err
		}

		numRows := uint64(pr.GetNumRows())
		if seen+numRows <= offset {
			seen += numRows
			closeFn()
			continue
		}

		skip := uint64(0)
		if offset > seen {
			skip = offset - seen
		}

		rows := make([]row, numRows)
		if err := pr.Read(&rows); err != nil {
			closeFn()
			return nil, fmt.Errorf("reading rows from %q: %w", path, err)
		}
		closeFn()

		for i := skip; i < numRows && remaining > 0; i++ {
			out[ngram.NGram(rows[i].Ngram)] = decodeFrequency(rows[i].Frequency)
			remaining--
		}
		seen += numRows
	}

	return out, nil
}

// Frequencies implements Loader.
func (l *ParquetLoader) Frequencies(_ context.Context, chunk Chunk, policy children.Policy, accepted *acceptedset.Set) (map[ngram.NGram]ngram.Freq, error) {
	wanted := wantedChildren(chunk, policy, accepted)
	byOrder := groupByOrder(wanted)

	out := make(map[ngram.NGram]ngram.Freq, len(wanted))
	for g, f := range chunk {
		out[g] = f
		delete(wanted, g)
	}

	for n, grams := range byOrder {
		idx, err := l.orderIndex(n)
		if err != nil {
			return nil, err
		}
		if len(idx) == 0 {
			continue
		}

		byFile := make(map[string][]ngram.NGram)
		for _, g := range grams {
			if _, already := out[g]; already {
				continue
			}
			path := locateFile(idx, g)
			byFile[path] = append(byFile[path], g)
		}

		for path, wantedInFile := range byFile {
			found, err := scanFileFor(path, wantedInFile)
			if err != nil {
				return nil, err
			}
			for g, f := range found {
				out[g] = f
			}
		}
	}

	return out, nil
}

// orderIndex returns (building and memoizing, if absent) the sorted
// first-ngram index for partition n. Expensive to compute, stable per
// input path — memoized for the loader's lifetime.
func (l *ParquetLoader) orderIndex(n int) ([]fileEntry, error) {
	l.indexMu.Lock()
	defer l.indexMu.Unlock()

	if idx, ok := l.index[n]; ok {
		return idx, nil
	}

	files, err := l.partitionFiles(n)
	if err != nil {
		return nil, err
	}

	if l.Logger != nil {
		l.Logger.Debug("scanning input directory for first-ngram index", zap.Int("n", n), zap.Int("files", len(files)))
	}

	idx := make([]fileEntry, 0, len(files))
	for _, path := range files {
		pr, closeFn, err := l.openReader(path)
		if err != nil {
			return nil, err
		}
		if pr.GetNumRows() == 0 {
			closeFn()
			continue
		}
		var first [1]row
		rows := first[:]
		if err := pr.Read(&rows); err != nil {
			closeFn()
			return nil, fmt.Errorf("reading first row of %q: %w", path, err)
		}
		closeFn()
		idx = append(idx, fileEntry{firstNgram: ngram.NGram(rows[0].Ngram), path: path})
	}

	sort.Slice(idx, func(i, j int) bool { return idx[i].firstNgram < idx[j].firstNgram })
	l.index[n] = idx
	return idx, nil
}

// locateFile binary-searches idx (sorted by first ngram) for the file whose
// range could contain g: the last file whose first ngram is <= g.
func locateFile(idx []fileEntry, g ngram.NGram) string {
	i := sort.Search(len(idx), func(i int) bool { return idx[i].firstNgram > g })
	if i == 0 {
		return idx[0].path
	}
	return idx[i-1].path
}

// scanFileFor reads every row of path and returns the Freq of every
// requested n-gram found in it.
func scanFileFor(path string, wanted []ngram.NGram) (map[ngram.NGram]ngram.Freq, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(row), 4)
	if err != nil {
		return nil, fmt.Errorf("reading parquet schema of %q: %w", path, err)
	}
	defer pr.ReadStop()

	want := make(map[ngram.NGram]struct{}, len(wanted))
	for _, g := range wanted {
		want[g] = struct{}{}
	}

	out := make(map[ngram.NGram]ngram.Freq, len(wanted))
	numRows := int(pr.GetNumRows())
	rows := make([]row, numRows)
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("reading rows from %q: %w", path, err)
	}

	for _, r := range rows {
		g := ngram.NGram(r.Ngram)
		if _, ok := want[g]; ok {
			out[g] = decodeFrequency(r.Frequency)
		}
	}
	return out, nil
}
