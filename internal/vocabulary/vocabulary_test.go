package vocabulary

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/framevocab/internal/models"
)

func result(idx int, text string) models.RecognitionResult {
	return models.RecognitionResult{FrameIndex: idx, Text: text, Languages: "eng+chi_sim"}
}

func TestTokensSplitOnWhitespaceAndPunctuation(t *testing.T) {
	tok := NewTokenizer()

	got := tok.Tokens("Hello, World!\tDon't  e-mail (now)... 42%")
	assert.Equal(t, []string{"hello", "world", "don't", "e-mail", "now", "42"}, got)
}

func TestTokensHanRunsAreUnits(t *testing.T) {
	tok := NewTokenizer()

	got := tok.Tokens("视频教程，第一集。學習中文")
	assert.Equal(t, []string{"视频教程", "第一集", "學習中文"}, got)
}

func TestTokensSplitMixedScripts(t *testing.T) {
	tok := NewTokenizer()

	assert.Equal(t, []string{"go", "语言", "v2"}, tok.Tokens("Go语言V2"))
	assert.Equal(t, []string{"ai", "视频"}, tok.Tokens("AI-视频"))
}

func TestTokensDropEmpty(t *testing.T) {
	tok := NewTokenizer()

	assert.Empty(t, tok.Tokens("  \n ... ，。 -- "))
	assert.Empty(t, tok.Tokens(""))
}

func TestAggregatorCaseFoldsLatinOnly(t *testing.T) {
	agg := NewAggregator(nil)

	_, err := agg.Add(result(0, "Hello hello HELLO 视频 視頻"))
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "视频", "視頻"}, agg.Finalize().Words())
}

func TestAggregatorDedupAcrossFramesKeepsFirstSeenOrder(t *testing.T) {
	agg := NewAggregator(nil)

	for i, text := range []string{"beta alpha", "gamma Beta", "alpha delta"} {
		_, err := agg.Add(result(i, text))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"beta", "alpha", "gamma", "delta"}, agg.Finalize().Words())
}

func TestAggregatorIdempotentForRepeatedResult(t *testing.T) {
	once := NewAggregator(nil)
	twice := NewAggregator(nil)
	r := result(0, "Subscribe now 订阅 now")

	_, err := once.Add(r)
	require.NoError(t, err)
	_, err = twice.Add(r)
	require.NoError(t, err)
	added, err := twice.Add(r)
	require.NoError(t, err)

	assert.Zero(t, added)
	assert.Equal(t, once.Finalize().Words(), twice.Finalize().Words())
}

func TestAggregatorClosedAfterFinalize(t *testing.T) {
	agg := NewAggregator(nil)
	_, err := agg.Add(result(0, "one"))
	require.NoError(t, err)

	first := agg.Finalize()
	_, err = agg.Add(result(1, "two"))
	assert.ErrorIs(t, err, models.ErrAggregatorClosed)

	assert.Equal(t, first.Words(), agg.Finalize().Words())
	assert.Equal(t, 1, first.Len())
}

func TestAggregatorConcurrentAddKeepsEveryToken(t *testing.T) {
	agg := NewAggregator(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = agg.Add(result(i, "shared word"))
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"shared", "word"}, agg.Finalize().Words())
}
