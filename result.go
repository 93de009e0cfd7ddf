package polyadicqml

import (
	"fmt"
	"strconv"
)

// The canonical bit ordering of result columns is the reverse of the
// ordering the backends report: amplitude index k belongs in column
// bitReverse(k, nbQubits), and a measured bitstring is read reversed as a
// base-2 column index.

// bitReverse reverses the width low bits of k.
func bitReverse(k, width int) int {
	r := 0
	for i := 0; i < width; i++ {
		r = r<<1 | k&1
		k >>= 1
	}
	return r
}

func reverseString(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// normalize converts a raw job result into the sample-major result matrix.
// Without shots, rows are probabilities summing to 1; with shots, rows are
// counts summing to the shot count.
func normalize(res *JobResult, nbQubits, shots int) ([][]float64, error) {
	if shots == 0 {
		return normalizeState(res.Statevectors, nbQubits)
	}
	return normalizeCounts(res.Counts, nbQubits)
}

// normalizeState turns amplitude vectors into probability rows with the
// canonical bit ordering.
func normalizeState(vectors [][]complex128, nbQubits int) ([][]float64, error) {
	dim := 1 << nbQubits
	out := make([][]float64, len(vectors))
	for n, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("statevector %d has %d amplitudes, want %d", n, len(vec), dim)
		}
		row := make([]float64, dim)
		for k, amp := range vec {
			row[bitReverse(k, nbQubits)] = real(amp)*real(amp) + imag(amp)*imag(amp)
		}
		out[n] = row
	}
	return out, nil
}

// normalizeCounts turns per-circuit bitstring tallies into count rows with
// the canonical bit ordering. Unobserved outcomes stay zero.
func normalizeCounts(counts []map[string]int, nbQubits int) ([][]float64, error) {
	dim := 1 << nbQubits
	out := make([][]float64, len(counts))
	for n, tally := range counts {
		row := make([]float64, dim)
		for key, count := range tally {
			col, err := strconv.ParseInt(reverseString(key), 2, 64)
			if err != nil {
				return nil, fmt.Errorf("circuit %d: bad bitstring %q: %w", n, key, err)
			}
			if col >= int64(dim) {
				return nil, fmt.Errorf("circuit %d: bitstring %q exceeds %d qubits", n, key, nbQubits)
			}
			row[col] = float64(count)
		}
		out[n] = row
	}
	return out, nil
}
