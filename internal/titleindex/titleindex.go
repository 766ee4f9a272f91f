// Package titleindex provides typo-tolerant title lookup over a catalog, used for
// "did you mean" suggestions and autocomplete.
package titleindex

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/eiga/internal/vectorizer"
)

const titleField = "title"

// Suggestion is one catalog title close to a query.
type Suggestion struct {
	Index int     `json:"index"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Index is an in-memory Bleve index over catalog titles. Document IDs are catalog positions.
type Index struct {
	index  bleve.Index
	titles []string
}

// Build indexes titles in catalog order.
func Build(titles []string) (*Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	titleMapping := bleve.NewTextFieldMapping()
	titleMapping.Analyzer = standard.Name
	titleMapping.Store = false
	docMapping.AddFieldMappingsAt(titleField, titleMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create title index: %w", err)
	}
	batch := index.NewBatch()
	for i, title := range titles {
		if err := batch.Index(strconv.Itoa(i), map[string]interface{}{titleField: title}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("failed to index title %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index titles: %w", err)
	}
	return &Index{index: index, titles: append([]string(nil), titles...)}, nil
}

// Len returns the number of indexed titles.
func (x *Index) Len() int {
	return len(x.titles)
}

// Suggest returns up to limit titles ranked by relevance to query. Each query term is
// matched with edit-distance tolerance; the last term also matches as a prefix.
func (x *Index) Suggest(query string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		return []Suggestion{}, nil
	}
	q := buildQuery(query)
	if q == nil {
		return []Suggestion{}, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.SortBy([]string{"-_score", "_id"})
	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}
	out := make([]Suggestion, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(x.titles) {
			continue
		}
		out = append(out, Suggestion{Index: i, Title: x.titles[i], Score: hit.Score})
	}
	return out, nil
}

// Titles returns only the titles of Suggest.
func (x *Index) Titles(query string, limit int) ([]string, error) {
	sugg, err := x.Suggest(query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sugg))
	for i, s := range sugg {
		out[i] = s.Title
	}
	return out, nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}

func buildQuery(query string) blevequery.Query {
	terms := vectorizer.Tokenize(query, vectorizer.EnglishStopWords())
	if len(terms) == 0 {
		return nil
	}
	queries := make([]blevequery.Query, 0, len(terms)+1)
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness(term))
		fq.SetField(titleField)
		queries = append(queries, fq)
	}
	pq := bleve.NewPrefixQuery(terms[len(terms)-1])
	pq.SetField(titleField)
	queries = append(queries, pq)
	return bleve.NewDisjunctionQuery(queries...)
}

// Short terms get a tighter edit distance so "up" does not match every two-letter word.
func fuzziness(term string) int {
	if utf8.RuneCountInString(term) <= 4 {
		return 1
	}
	return 2
}
