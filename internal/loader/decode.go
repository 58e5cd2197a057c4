package loader

import "github.com/armchr/ngcompress/internal/ngram"

// decodeFrequency turns the variable-length integer list stored in a row
// into a length-201 Freq. Entries beyond index 200 are dropped; a short
// list is zero-padded. Non-integer or missing entries are already 0 by the
// time they reach here (the storage layer decodes them as such).
func decodeFrequency(list []int64) ngram.Freq {
	var f ngram.Freq
	for i, v := range list {
		if i >= ngram.Years {
			break
		}
		f[i] = float64(v)
	}
	return f
}

func encodeFrequency(f ngram.Freq) []int64 {
	out := make([]int64, ngram.Years)
	for i, v := range f {
		out[i] = int64(v)
	}
	return out
}
