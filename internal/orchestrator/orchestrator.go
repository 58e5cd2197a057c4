// Package orchestrator runs the n-gram compression passes:
// for each n-gram order n=1..5, it pages through the corpus in steps,
// fans out LP solves across a bounded worker pool, partitions results into
// accepted/rejected, writes both partitions, and folds accepted n-grams
// into the cross-pass accepted set before the next step.
package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/armchr/ngcompress/internal/acceptedset"
	"github.com/armchr/ngcompress/internal/children"
	"github.com/armchr/ngcompress/internal/loader"
	"github.com/armchr/ngcompress/internal/lpbuilder"
	"github.com/armchr/ngcompress/internal/ngram"
	"github.com/armchr/ngcompress/internal/solution"
	"github.com/armchr/ngcompress/internal/writer"
)

// Config bundles the orchestrator's tunables, mirroring the "optimize"
// flags once resolved to concrete values.
type Config struct {
	ChunkSize  uint64
	ErrorBound float64
	Cores      int
	OutputAll  bool
	Verbose    bool
	Policy     children.Policy
}

// Orchestrator drives the full n=1..5 pass sequence against a Loader,
// writing results via a Writer and logging progress with zap.
type Orchestrator struct {
	Loader loader.Loader
	Writer *writer.Writer
	Logger *zap.Logger
	Config Config

	accepted *acceptedset.Set
}

// New builds an Orchestrator with a fresh, empty accepted set.
func New(l loader.Loader, w *writer.Writer, logger *zap.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		Loader:   l,
		Writer:   w,
		Logger:   logger,
		Config:   cfg,
		accepted: acceptedset.New(cfg.Policy.KeepsFrequency()),
	}
}

// Run executes passes n=1..5 in order. The accepted set persists and only
// grows across passes, never shrinking between them.
func (o *Orchestrator) Run(ctx context.Context) error {
	for n := 1; n <= 5; n++ {
		if err := o.runPass(ctx, n); err != nil {
			return fmt.Errorf("pass n=%d: %w", n, err)
		}
	}
	return nil
}

// runPass steps through every offset of order n.
func (o *Orchestrator) runPass(ctx context.Context, n int) error {
	count, err := o.Loader.Count(ctx, n)
	if err != nil {
		return fmt.Errorf("counting n=%d: %w", n, err)
	}
	if count == 0 {
		o.Logger.Debug("no rows for order, skipping pass", zap.Int("n", n))
		return nil
	}

	cpu := o.Config.Cores
	if cpu < 1 {
		cpu = 1
	}
	subChunk := o.Config.ChunkSize / uint64(cpu)
	if subChunk == 0 {
		subChunk = 1
	}
	// Stride is an exact multiple of subChunk, so the outer loop and the
	// inner per-worker tiling never overlap or leave a gap between steps.
	stride := subChunk * uint64(cpu)

	for offset := uint64(0); offset < count; offset += stride {
		solutions, err := o.runStep(ctx, n, offset, subChunk, cpu)
		if err != nil {
			return fmt.Errorf("step at offset %d: %w", offset, err)
		}

		var acceptedSols, rejectedSols []solution.Solution
		newlyAccepted := make(map[ngram.NGram]ngram.Freq, len(solutions))
		for _, s := range solutions {
			if s.Accepted(o.Config.ErrorBound) {
				acceptedSols = append(acceptedSols, s)
				newlyAccepted[s.NGram] = s.Calculated
			} else {
				rejectedSols = append(rejectedSols, s)
			}
		}
		o.accepted.Extend(newlyAccepted)

		o.Logger.Debug("step complete",
			zap.Int("n", n),
			zap.Uint64("offset", offset),
			zap.Int("accepted_this_step", len(acceptedSols)),
			zap.Int("rejected_this_step", len(rejectedSols)),
			zap.Int("accepted_set_size", o.accepted.Len()),
		)

		toWrite := acceptedSols
		if o.Config.OutputAll {
			toWrite = solutions
		}
		if err := o.Writer.WriteCompressed(n, offset, toWrite); err != nil {
			return fmt.Errorf("writing compressed partition: %w", err)
		}
		if err := o.Writer.WriteUncompressed(n, offset, rejectedSols); err != nil {
			return fmt.Errorf("writing uncompressed partition: %w", err)
		}
	}

	return nil
}

// runStep fans a step's rows out over exactly cpu subchunks — a deliberate
// departure from a "cpu+1 subchunks" design: both loader backends page
// deterministically, so an extra subchunk beyond cpu isn't needed to avoid
// double-processing, and dropping it keeps the outer stride an exact
// multiple of subChunk. Each subchunk resolves its own frequencies
// and solves every n-gram's LP concurrently, bounded to cpu workers at both
// levels.
func (o *Orchestrator) runStep(ctx context.Context, n int, offset, subChunk uint64, cpu int) ([]solution.Solution, error) {
	outer, ctx := errgroup.WithContext(ctx)
	outer.SetLimit(cpu)

	results := make(chan []solution.Solution, cpu)

	for j := 0; j < cpu; j++ {
		j := j
		outer.Go(func() error {
			subOffset := offset + uint64(j)*subChunk
			chunk, err := o.Loader.Slice(ctx, subChunk, subOffset, n)
			if err != nil {
				return fmt.Errorf("slicing subchunk %d: %w", j, err)
			}
			if len(chunk) == 0 {
				return nil
			}

			frequencies, err := o.Loader.Frequencies(ctx, chunk, o.Config.Policy, o.accepted)
			if err != nil {
				return fmt.Errorf("resolving frequencies for subchunk %d: %w", j, err)
			}
			mergeAcceptedFrequencies(frequencies, o.accepted, o.Config.Policy)

			sols, err := o.solveChunk(ctx, chunk, frequencies, cpu)
			if err != nil {
				return err
			}
			results <- sols
			return nil
		})
	}

	if err := outer.Wait(); err != nil {
		return nil, err
	}
	close(results)

	var all []solution.Solution
	for sols := range results {
		all = append(all, sols...)
	}
	return all, nil
}

// solveChunk runs minimize_abs_error for every n-gram in chunk concurrently,
// bounded to cpu workers (the inner level of the two-level worker pool).
func (o *Orchestrator) solveChunk(ctx context.Context, chunk loader.Chunk, frequencies map[ngram.NGram]ngram.Freq, cpu int) ([]solution.Solution, error) {
	inner, _ := errgroup.WithContext(ctx)
	inner.SetLimit(cpu)

	sols := make([]solution.Solution, len(chunk))
	targets := make([]ngram.NGram, 0, len(chunk))
	for g := range chunk {
		targets = append(targets, g)
	}

	for i, g := range targets {
		i, g := i, g
		inner.Go(func() error {
			sols[i] = lpbuilder.MinimizeAbsError(g, frequencies, o.Config.Policy, o.accepted)
			return nil
		})
	}

	if err := inner.Wait(); err != nil {
		return nil, err
	}
	return sols, nil
}

// mergeAcceptedFrequencies folds the accepted set into frequencies: direct-
// children folds in real reconstructed vectors so an already-compressed
// n-gram can regress directly; the other policies only need accepted
// identifiers present, as synthetic zero vectors, so minimize_abs_error's
// all-zero filter excludes them from the regressor set while the child
// enumerator still treats them as resolvable.
func mergeAcceptedFrequencies(frequencies map[ngram.NGram]ngram.Freq, accepted *acceptedset.Set, policy children.Policy) {
	var extra map[ngram.NGram]ngram.Freq
	if policy.KeepsFrequency() {
		extra = accepted.FrequencyMap()
	} else {
		extra = accepted.ZeroFrequencyMap()
	}
	for g, f := range extra {
		if _, ok := frequencies[g]; !ok {
			frequencies[g] = f
		}
	}
}
