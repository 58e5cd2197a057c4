package orchestrator

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/loader"
	"github.com/armchr/ngcompress/internal/ngram"
	"github.com/armchr/ngcompress/internal/writer"
)

// fakeLoader is an in-memory Loader over one order's worth of rows, used to
// exercise the orchestrator without a real backend.
type fakeLoader struct {
	rows map[ngram.NGram]ngram.Freq
}

func (f *fakeLoader) Count(_ context.Context, n int) (uint64, error) {
	return uint64(len(f.rows)), nil
}

func (f *fakeLoader) Slice(_ context.Context, limit, offset uint64, n int) (loader.Chunk, error) {
	keys := make([]ngram.NGram, 0, len(f.rows))
	for g := range f.rows {
		keys = append(keys, g)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make(loader.Chunk)
	for i := offset; i < offset+limit && i < uint64(len(keys)); i++ {
		g := keys[i]
		out[g] = f.rows[g]
	}
	return out, nil
}

func (f *fakeLoader) Frequencies(_ context.Context, chunk loader.Chunk, policy children.Policy, accepted *acceptedset.Set) (map[ngram.NGram]ngram.Freq, error) {
	wanted := make(map[ngram.NGram]struct{})
	for g := range chunk {
		for _, c := range children.Enumerate(g, policy, accepted) {
			wanted[c] = struct{}{}
		}
	}
	out := make(map[ngram.NGram]ngram.Freq)
	for g, fr := range chunk {
		out[g] = fr
	}
	for g := range wanted {
		if fr, ok := f.rows[g]; ok {
			out[g] = fr
		}
	}
	return out, nil
}

func freqFirst(v float64) ngram.Freq {
	var f ngram.Freq
	f[0] = v
	return f
}

func TestRunSinglePassCompressesAndWrites(t *testing.T) {
	rows := map[ngram.NGram]ngram.Freq{
		"dog":      freqFirst(3),
		"runs":     freqFirst(5),
		"dog runs": freqFirst(8),
	}
	l := &fakeLoader{rows: rows}

	dir := t.TempDir()
	w := writer.New(dir, true)
	logger := zap.NewNop()

	o := New(l, w, logger, Config{
		ChunkSize:  10,
		ErrorBound: 1.0,
		Cores:      2,
		OutputAll:  true,
		Verbose:    true,
		Policy:     children.DirectChildren,
	})

	ctx := context.Background()
	require.NoError(t, o.runPass(ctx, 2))

	require.FileExists(t, filepath.Join(dir, "compressed", "n=2", "0.parquet"))
	require.FileExists(t, filepath.Join(dir, "uncompressed", "n=2", "0.parquet"))
}

func TestRunPassSkipsEmptyOrder(t *testing.T) {
	l := &fakeLoader{rows: map[ngram.NGram]ngram.Freq{}}
	dir := t.TempDir()
	o := New(l, writer.New(dir, false), zap.NewNop(), Config{ChunkSize: 10, ErrorBound: 1.0, Cores: 1, Policy: children.FullRecursive})

	require.NoError(t, o.runPass(context.Background(), 3))
	require.Equal(t, 0, o.accepted.Len())
}
