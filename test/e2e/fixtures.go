package e2e

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hyperjump/eiga/internal/dataset"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// FixtureFormats maps each dataset format to the file name its fixture is written as.
var FixtureFormats = map[string]string{
	dataset.FormatCSV:       "items.csv",
	dataset.FormatTSV:       "items.tsv",
	dataset.FormatXLSX:      "items.xlsx",
	dataset.FormatMovieLens: "u.item",
}

// WriteFixture encodes items in the given dataset format.
func WriteFixture(format string, items []models.Item) ([]byte, error) {
	switch format {
	case dataset.FormatCSV:
		var buf bytes.Buffer
		err := dataset.WriteCSV(&buf, items)
		return buf.Bytes(), err
	case dataset.FormatTSV:
		var b strings.Builder
		b.WriteString("item_id\ttitle\n")
		for _, it := range items {
			fmt.Fprintf(&b, "%s\t%s\n", it.ID, it.Title)
		}
		return []byte(b.String()), nil
	case dataset.FormatXLSX:
		return xlsxFixture(items)
	case dataset.FormatMovieLens:
		var b strings.Builder
		for _, it := range items {
			fmt.Fprintf(&b, "%s|%s|01-Jan-1995||http://us.imdb.com/|0|0|0\n", it.ID, it.Title)
		}
		return charmap.ISO8859_1.NewEncoder().Bytes([]byte(b.String()))
	}
	return nil, fmt.Errorf("no fixture for format %q", format)
}

func xlsxFixture(items []models.Item) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"item_id", "title"}); err != nil {
		return nil, err
	}
	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{it.ID, it.Title}); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
