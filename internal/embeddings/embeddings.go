// Package embeddings maps a vocabulary to a fixed-size vector so that videos
// with overlapping on-screen text can be found with a nearest-neighbour query.
package embeddings

import (
	"hash/fnv"
	"math"
)

// Dimensions is the length of every vocabulary vector. It must match the
// vector column of the videos table.
const Dimensions = 256

// Vector is an L2-normalized hashed bag of words.
type Vector struct {
	Data []float32
}

// FromWords builds the vector of a vocabulary. Every token is hashed into one
// bucket with a hash-derived sign; the result is scaled to unit length. An
// empty vocabulary yields the zero vector.
func FromWords(words []string) Vector {
	data := make([]float32, Dimensions)
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		bucket := sum % Dimensions
		if sum>>63 == 1 {
			data[bucket]--
		} else {
			data[bucket]++
		}
	}

	var norm float64
	for _, v := range data {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return Vector{Data: data}
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range data {
		data[i] *= scale
	}
	return Vector{Data: data}
}
