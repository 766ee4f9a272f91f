package recommend

import (
	"testing"

	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fit(t *testing.T, titles ...string) *bundle.Bundle {
	t.Helper()
	items := make([]models.Item, len(titles))
	for i, title := range titles {
		items[i] = models.Item{ID: string(rune('a' + i)), Title: title}
	}
	b, err := bundle.Fit(items, bundle.Options{})
	require.NoError(t, err)
	return b
}

func storyBundle(t *testing.T) *bundle.Bundle {
	return fit(t,
		"Toy Story (1995)",
		"Toy Story 2 (1999)",
		"Philadelphia Story, The (1940)",
		"Fantasia (1940)",
	)
}

func TestQuery_ToyStory(t *testing.T) {
	got, err := Query(storyBundle(t), "Toy Story", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Toy Story 2 (1999)", "Philadelphia Story, The (1940)"}, got)
}

func TestQuery_NoMatchIsEmpty(t *testing.T) {
	got, err := Query(storyBundle(t), "Nonexistent Film XYZ", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQuery_InvalidTopK(t *testing.T) {
	for _, k := range []int{0, -1} {
		_, err := Query(storyBundle(t), "Toy Story", k)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestQuery_ClampsToCatalogSize(t *testing.T) {
	b := fit(t, "Heat (1995)", "Sabrina (1995)", "Heat and Dust (1983)")
	got, err := Query(b, "Sabrina", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotContains(t, got, "Sabrina (1995)")
}

func TestRecommend_ZeroVectorItem(t *testing.T) {
	// "It (1990)" keeps no terms: "it" is a stop word and years are dropped.
	b := fit(t, "It (1990)", "Heat (1995)", "Heat Wave")
	require.Zero(t, b.Matrix.At(0, 0))

	res, err := Recommend(b, "It (1990)", 5, MatchFirst)
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, 0, res.Matched)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, []string{"Heat (1995)", "Heat Wave"}, res.Titles())
	for _, rec := range res.Recommendations {
		assert.Zero(t, rec.Score)
	}
	assert.Equal(t, 1, res.Recommendations[0].Index)
	assert.Equal(t, 2, res.Recommendations[1].Index)
}

func TestQuery_TiesBreakByIndex(t *testing.T) {
	b := fit(t, "Alien (1979)", "Aliens (1986)", "Heat (1995)", "Sabrina (1995)")
	got, err := Query(b, "Alien", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aliens (1986)", "Heat (1995)", "Sabrina (1995)"}, got)
}

func TestRecommend_ExcludesSelfNotDuplicates(t *testing.T) {
	b := fit(t, "Heat (1995)", "Heat (1995)", "Sabrina (1995)")
	res, err := Recommend(b, "heat", 5, MatchFirst)
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, 0, res.Matched)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, 1, res.Recommendations[0].Index)
	assert.InDelta(t, 1.0, res.Recommendations[0].Score, 1e-6)
	for _, rec := range res.Recommendations {
		assert.NotEqual(t, res.Matched, rec.Index)
	}
}

func TestRecommend_ScoresDescending(t *testing.T) {
	b := fit(t,
		"Star Wars (1977)",
		"Star Trek: The Motion Picture (1979)",
		"Star Trek: Generations (1994)",
		"Wars of the Roses (1989)",
		"Trek Nation (2010)",
		"Emma (1996)",
	)
	res, err := Recommend(b, "star trek: generations", 5, MatchFirst)
	require.NoError(t, err)
	require.True(t, res.Found())
	for i := 1; i < len(res.Recommendations); i++ {
		prev, cur := res.Recommendations[i-1], res.Recommendations[i]
		if prev.Score == cur.Score {
			assert.Less(t, prev.Index, cur.Index)
		} else {
			assert.Greater(t, prev.Score, cur.Score)
		}
	}
	assert.Equal(t, "Star Trek: The Motion Picture (1979)", res.Recommendations[0].Title)
}

func TestRecommend_MatchPolicy(t *testing.T) {
	b := fit(t, "Heat and Dust (1983)", "Heat", "Sabrina (1995)")

	res, err := Recommend(b, "Heat", 1, MatchFirst)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)

	res, err = Recommend(b, "heat", 1, MatchExactFirst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, "Heat", res.MatchedItem.Title)

	res, err = Recommend(b, "Dust", 1, MatchExactFirst)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)
}

func TestQuery_Deterministic(t *testing.T) {
	b := storyBundle(t)
	first, err := Query(b, "story", 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Query(b, "story", 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MatchFirst, p)
	p, err = ParseMatchPolicy("exact_first")
	require.NoError(t, err)
	assert.Equal(t, MatchExactFirst, p)
	_, err = ParseMatchPolicy("fuzzy")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
