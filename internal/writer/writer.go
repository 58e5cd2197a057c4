// Package writer serializes one step's partitioned solutions to the
// optimizer's output layout: a compressed table for
// accepted n-grams and an uncompressed table for rejected ones, one file
// pair per step, named by the step's starting offset.
package writer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/armchr/ngcompress/internal/solution"
)

// coefficientRow is one (token, coefficient) pair inside a compressedRow's
// repeated group.
type coefficientRow struct {
	Token       string  `parquet:"name=token, type=BYTE_ARRAY, convertedtype=UTF8"`
	Coefficient float64 `parquet:"name=coefficient, type=DOUBLE"`
}

// compressedRow is the accepted-partition schema. The error, rmse and
// summed_error columns are always part of the written table; they are only
// populated by Writer.WriteCompressed when verbose output was requested and
// hold zero otherwise. Non-verbose output does not drop those columns.
type compressedRow struct {
	Ngram        string           `parquet:"name=ngram, type=BYTE_ARRAY, convertedtype=UTF8"`
	Coefficients []coefficientRow `parquet:"name=coefficients, type=LIST"`
	Error        float64          `parquet:"name=error, type=DOUBLE"`
	RMSE         float64          `parquet:"name=rmse, type=DOUBLE"`
	SummedError  float64          `parquet:"name=summed_error, type=DOUBLE"`
}

// uncompressedRow is the rejected-partition schema: the original frequency,
// untouched.
type uncompressedRow struct {
	Ngram     string    `parquet:"name=ngram, type=BYTE_ARRAY, convertedtype=UTF8"`
	Frequency []float64 `parquet:"name=frequency, type=DOUBLE, repetitiontype=REPEATED"`
}

// Writer emits one step's accepted/rejected Solutions under root, using no
// block compression to keep the files cheap to inspect.
type Writer struct {
	Root    string
	Verbose bool
}

// New builds a Writer rooted at root.
func New(root string, verbose bool) *Writer {
	return &Writer{Root: root, Verbose: verbose}
}

// WriteCompressed writes the accepted partition for order n at the given
// step offset.
func (w *Writer) WriteCompressed(n int, offset uint64, accepted []solution.Solution) error {
	path := w.path("compressed", n, offset)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating compressed output dir for %q: %w", path, err)
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("opening compressed output %q: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(compressedRow), 4)
	if err != nil {
		return fmt.Errorf("creating compressed writer for %q: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED

	for _, s := range accepted {
		row := compressedRow{Ngram: string(s.NGram), Coefficients: toCoefficientRows(s)}
		if w.Verbose {
			row.Error = s.Error
			row.RMSE = s.RMSE
			row.SummedError = s.SummedError
		}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("writing compressed row for %q: %w", s.NGram, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalizing compressed output %q: %w", path, err)
	}
	return nil
}

// WriteUncompressed writes the rejected partition for order n at the given
// step offset.
func (w *Writer) WriteUncompressed(n int, offset uint64, rejected []solution.Solution) error {
	path := w.path("uncompressed", n, offset)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating uncompressed output dir for %q: %w", path, err)
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("opening uncompressed output %q: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(uncompressedRow), 4)
	if err != nil {
		return fmt.Errorf("creating uncompressed writer for %q: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED

	for _, s := range rejected {
		row := uncompressedRow{Ngram: string(s.NGram), Frequency: s.Original[:]}
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("writing uncompressed row for %q: %w", s.NGram, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalizing uncompressed output %q: %w", path, err)
	}
	return nil
}

func (w *Writer) path(table string, n int, offset uint64) string {
	return filepath.Join(w.Root, table, fmt.Sprintf("n=%d", n), fmt.Sprintf("%d.parquet", offset))
}

func toCoefficientRows(s solution.Solution) []coefficientRow {
	out := make([]coefficientRow, 0, len(s.Coefficients))
	for _, c := range s.Coefficients {
		out = append(out, coefficientRow{Token: c.Token, Coefficient: c.Coefficient})
	}
	return out
}
