// Package dataset loads item catalogs from tabular files.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Supported formats.
const (
	FormatAuto      = "auto"
	FormatCSV       = "csv"
	FormatTSV       = "tsv"
	FormatMovieLens = "movielens"
	FormatXLSX      = "xlsx"
)

var (
	// ErrUnsupportedFormat is returned for unknown formats or extensions.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrMissingColumn is returned when a header lacks item_id or title.
	ErrMissingColumn = errors.New("missing column")
)

// Options controls parsing.
type Options struct {
	Format string
	// Delimiter overrides the field separator for csv.
	Delimiter rune
}

// DetectFormat infers a format from the file extension.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".item":
		return FormatMovieLens, nil
	}
	return "", fmt.Errorf("%w: cannot infer from %q", ErrUnsupportedFormat, filepath.Base(path))
}

// Load reads items from path.
func Load(path string, opts Options) ([]models.Item, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	format := strings.ToLower(opts.Format)
	if format == "" || format == FormatAuto {
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}
	return Parse(content, format, opts.Delimiter)
}

// Parse decodes content in the given format.
func Parse(content []byte, format string, delimiter rune) ([]models.Item, error) {
	switch format {
	case FormatCSV:
		if delimiter == 0 {
			delimiter = ','
		}
		return parseDelimited(bytes.NewReader(content), delimiter)
	case FormatTSV:
		return parseDelimited(bytes.NewReader(content), '\t')
	case FormatMovieLens:
		return parseMovieLens(content)
	case FormatXLSX:
		return parseExcel(content)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func newReader(r io.Reader, delimiter rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func parseDelimited(r io.Reader, delimiter rune) ([]models.Item, error) {
	rows, err := newReader(r, delimiter).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	return fromRows(rows)
}

// parseMovieLens reads the ml-100k u.item layout: pipe separated, latin-1, no header.
func parseMovieLens(content []byte) ([]models.Item, error) {
	decoded := charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(content))
	cr := newReader(decoded, '|')
	var items []models.Item
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse line %d: %w", line, err)
		}
		if len(rec) < 2 {
			continue
		}
		items = append(items, models.Item{ID: strings.TrimSpace(rec[0]), Title: rec[1]})
	}
	return items, nil
}

func parseExcel(content []byte) ([]models.Item, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows)
}

// fromRows maps a header row plus records to items.
func fromRows(rows [][]string) ([]models.Item, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idCol, titleCol := -1, -1
	for i, name := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "item_id", "id", "movie_id":
			if idCol < 0 {
				idCol = i
			}
		case "title":
			if titleCol < 0 {
				titleCol = i
			}
		}
	}
	if titleCol < 0 {
		return nil, fmt.Errorf("%w: title", ErrMissingColumn)
	}
	if idCol < 0 {
		return nil, fmt.Errorf("%w: item_id", ErrMissingColumn)
	}

	items := make([]models.Item, 0, len(rows)-1)
	for _, row := range rows[1:] {
		items = append(items, models.Item{ID: cell(row, idCol), Title: cell(row, titleCol)})
	}
	return items, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Clean collapses whitespace in titles and drops items whose title is blank.
// It returns the kept items and how many were dropped.
func Clean(items []models.Item) ([]models.Item, int) {
	out := make([]models.Item, 0, len(items))
	for _, it := range items {
		title := collapseSpace(it.Title)
		if title == "" {
			continue
		}
		out = append(out, models.Item{ID: strings.TrimSpace(it.ID), Title: title})
	}
	return out, len(items) - len(out)
}

func collapseSpace(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// WriteCSV writes items as item_id,title with a header row.
func WriteCSV(w io.Writer, items []models.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"item_id", "title"}); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write([]string{it.ID, it.Title}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
