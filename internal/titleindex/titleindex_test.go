package titleindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var titles = []string{
	"Toy Story (1995)",
	"GoldenEye (1995)",
	"Four Rooms (1995)",
	"Get Shorty (1995)",
	"Godfather, The (1972)",
	"Godfather: Part II, The (1974)",
}

func TestSuggest_Typo(t *testing.T) {
	idx, err := Build(titles)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, len(titles), idx.Len())

	got, err := idx.Titles("Godfater", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Godfather, The (1972)", "Godfather: Part II, The (1974)"}, got)

	got, err = idx.Titles("toi storry", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Toy Story (1995)", got[0])
}

func TestSuggest_Prefix(t *testing.T) {
	idx, err := Build(titles)
	require.NoError(t, err)
	defer idx.Close()

	got, err := idx.Suggest("golden", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, "GoldenEye (1995)", got[0].Title)
}

func TestSuggest_LimitAndEmpty(t *testing.T) {
	idx, err := Build(titles)
	require.NoError(t, err)
	defer idx.Close()

	got, err := idx.Suggest("godfather", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = idx.Suggest("the of", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Suggest("godfather", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = idx.Suggest("zzzzzzzzzz", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
