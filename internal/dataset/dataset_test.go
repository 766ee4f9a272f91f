package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "movies.csv", []byte("title,item_id\n\"Story, The (1940)\",7\nHeat (1995),6\n"))
	items, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []models.Item{
		{ID: "7", Title: "Story, The (1940)"},
		{ID: "6", Title: "Heat (1995)"},
	}, items)
}

func TestLoad_TSV(t *testing.T) {
	path := writeFile(t, "movies.tsv", []byte("item_id\ttitle\n1\tToy Story (1995)\n"))
	items, err := Load(path, Options{Format: "auto"})
	require.NoError(t, err)
	assert.Equal(t, []models.Item{{ID: "1", Title: "Toy Story (1995)"}}, items)
}

func TestLoad_MovieLensLatin1(t *testing.T) {
	// "Cité" in ISO-8859-1 is 0xE9 for é.
	raw := []byte("1|Toy Story (1995)|01-Jan-1995||http://x|0|0\n2|La Cit\xe9 des enfants perdus (1995)|01-Jan-1995\n")
	path := writeFile(t, "u.item", raw)
	items, err := Load(path, Options{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Toy Story (1995)", items[0].Title)
	assert.Equal(t, "La Cité des enfants perdus (1995)", items[1].Title)
	assert.Equal(t, "2", items[1].ID)
}

func TestLoad_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"item_id", "title"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"1", "Toy Story (1995)"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2", "GoldenEye (1995)"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	items, err := Load(writeFile(t, "movies.xlsx", buf.Bytes()), Options{})
	require.NoError(t, err)
	assert.Equal(t, []models.Item{
		{ID: "1", Title: "Toy Story (1995)"},
		{ID: "2", Title: "GoldenEye (1995)"},
	}, items)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "movies.json", []byte("{}")), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(writeFile(t, "movies.csv", []byte("id,name\n1,x\n")), Options{})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.Error(t, err)

	_, err = Parse([]byte("x"), "parquet", 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_CustomDelimiter(t *testing.T) {
	path := writeFile(t, "movies.txt", []byte("item_id;title\n1;Heat (1995)\n"))
	items, err := Load(path, Options{Format: "csv", Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []models.Item{{ID: "1", Title: "Heat (1995)"}}, items)
}

func TestClean(t *testing.T) {
	items, dropped := Clean([]models.Item{
		{ID: " 1 ", Title: "  Toy   Story\t(1995) "},
		{ID: "2", Title: "   "},
		{ID: "3", Title: ""},
		{ID: "4", Title: "Heat (1995)"},
	})
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []models.Item{
		{ID: "1", Title: "Toy Story (1995)"},
		{ID: "4", Title: "Heat (1995)"},
	}, items)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []models.Item{
		{ID: "1", Title: "Toy Story (1995)"},
		{ID: "2", Title: "American President, The (1995)"},
	}))
	assert.Equal(t, "item_id,title\n1,Toy Story (1995)\n2,\"American President, The (1995)\"\n", buf.String())

	back, err := Parse(buf.Bytes(), FormatCSV, 0)
	require.NoError(t, err)
	assert.Len(t, back, 2)
}
