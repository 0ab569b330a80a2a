package embeddings

import (
	"math"
	"strconv"
	"strings"
)

// Cosine returns the cosine similarity of a and b, or 0 when either has zero norm
// or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	normA := Norm(a)
	if normA == 0 {
		return 0
	}
	normB := Norm(b)
	if normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}

// Norm returns the Euclidean length of v.
func Norm(v []float64) float64 {
	sum := 0.0
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}

// FormatVector renders v as "[v1, v2, ...]" with the shortest exact representation of each value.
func FormatVector(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, val := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
