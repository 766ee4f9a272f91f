// Package recommend answers "more like this title" queries against a fitted bundle.
package recommend

import (
	"errors"
	"fmt"

	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/models"
)

// ErrInvalidArgument is returned for a non-positive topK.
var ErrInvalidArgument = errors.New("invalid argument")

// MatchPolicy selects which catalog item a query resolves to when several titles contain it.
type MatchPolicy string

const (
	// MatchFirst picks the first substring match in catalog order.
	MatchFirst MatchPolicy = "first"
	// MatchExactFirst prefers a case-insensitive exact title match, then falls back to MatchFirst.
	MatchExactFirst MatchPolicy = "exact_first"
)

// ParseMatchPolicy parses a configured policy name. Empty selects MatchFirst.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(s) {
	case "", MatchFirst:
		return MatchFirst, nil
	case MatchExactFirst:
		return MatchExactFirst, nil
	default:
		return "", fmt.Errorf("%w: unknown match policy %q", ErrInvalidArgument, s)
	}
}

// Result is the outcome of one query. Matched is -1 when no title contained the query.
type Result struct {
	Matched         int
	MatchedItem     models.Item
	Recommendations []models.Recommendation
}

// Found reports whether the query resolved to a catalog item.
func (r *Result) Found() bool {
	return r.Matched >= 0
}

// Titles returns the recommended titles in rank order, never nil.
func (r *Result) Titles() []string {
	out := make([]string, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		out[i] = rec.Title
	}
	return out
}

// Query returns the titles of the topK items most similar to the item text resolves to.
// No match yields an empty list and a nil error.
func Query(b *bundle.Bundle, text string, topK int) ([]string, error) {
	res, err := Recommend(b, text, topK, MatchFirst)
	if err != nil {
		return nil, err
	}
	return res.Titles(), nil
}

// Recommend resolves text to one catalog item under policy and ranks every other item by
// similarity, descending, ties broken by ascending catalog index. The matched item is
// never part of its own recommendations. At most min(topK, N-1) results are returned.
func Recommend(b *bundle.Bundle, text string, topK int, policy MatchPolicy) (*Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	res := &Result{Matched: -1, Recommendations: []models.Recommendation{}}

	idx, ok := resolve(b, text, policy)
	if !ok {
		return res, nil
	}
	matched, err := b.Catalog.Item(idx)
	if err != nil {
		return nil, err
	}
	res.Matched = idx
	res.MatchedItem = matched

	for _, n := range b.Matrix.Nearest(idx, topK) {
		it, err := b.Catalog.Item(n.Index)
		if err != nil {
			return nil, err
		}
		res.Recommendations = append(res.Recommendations, models.Recommendation{
			Index: n.Index,
			ID:    it.ID,
			Title: it.Title,
			Score: float64(n.Score),
		})
	}
	return res, nil
}

func resolve(b *bundle.Bundle, text string, policy MatchPolicy) (int, bool) {
	if policy == MatchExactFirst {
		if i, ok := b.Catalog.FindExact(text); ok {
			return i, true
		}
	}
	matches := b.Catalog.FindBySubstring(text)
	if len(matches) == 0 {
		return -1, false
	}
	return matches[0], true
}
