package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbed_NormalizedAndDeterministic(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hashed-bow-512", e.Model())

	vecs, err := e.Embed(context.Background(), []string{"Solar panels convert sunlight", "Solar panels convert sunlight"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], DefaultDimension)
	assert.InDelta(t, 1.0, math.Sqrt(dot(vecs[0], vecs[0])), 1e-9)
	assert.Equal(t, vecs[0], vecs[1])
}

func TestEmbed_RelatedTextsScoreHigher(t *testing.T) {
	e := NewEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"how do solar panels work",
		"Solar panels convert sunlight into electricity.",
		"The quarterly budget was approved by the board.",
	})
	require.NoError(t, err)
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestEmbed_StopwordsOnlyIsZero(t *testing.T) {
	vecs, err := NewEmbedder(64).Embed(context.Background(), []string{"what is the", ""})
	require.NoError(t, err)
	for _, v := range vecs {
		for _, x := range v {
			assert.Zero(t, x)
		}
	}
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
