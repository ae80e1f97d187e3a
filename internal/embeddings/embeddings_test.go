package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromWordsIsUnitLengthAndDeterministic(t *testing.T) {
	words := []string{"subscribe", "视频", "hello"}

	a := FromWords(words)
	b := FromWords(words)

	assert.Len(t, a.Data, Dimensions)
	assert.Equal(t, a, b)

	var norm float64
	for _, v := range a.Data {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestFromWordsEmptyIsZero(t *testing.T) {
	v := FromWords(nil)
	for _, x := range v.Data {
		assert.Zero(t, x)
	}
}
