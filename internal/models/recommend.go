package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is returned by RecommendRequest.Normalize for malformed input.
var ErrInvalidRequest = errors.New("invalid request")

// RecommendRequest is the body of POST /recommend. Both fields are optional.
type RecommendRequest struct {
	Title *string `json:"title,omitempty"`
	TopK  *int    `json:"top_k,omitempty"`
}

// Normalize fills in defaults and rejects an empty title or a non-positive top_k.
// When maxTopK > 0, a top_k above it is rejected as well.
func (r *RecommendRequest) Normalize(defaultTitle string, defaultTopK, maxTopK int) (string, int, error) {
	title := defaultTitle
	if r.Title != nil {
		title = strings.TrimSpace(*r.Title)
		if title == "" {
			return "", 0, fmt.Errorf("%w: title cannot be empty", ErrInvalidRequest)
		}
	}
	topK := defaultTopK
	if r.TopK != nil {
		topK = *r.TopK
		if topK <= 0 {
			return "", 0, fmt.Errorf("%w: top_k must be a positive integer, got %d", ErrInvalidRequest, topK)
		}
	}
	if maxTopK > 0 && topK > maxTopK {
		return "", 0, fmt.Errorf("%w: top_k must be at most %d, got %d", ErrInvalidRequest, maxTopK, topK)
	}
	return title, topK, nil
}

// Recommendation is one ranked neighbour of the matched item.
type Recommendation struct {
	Index int     `json:"index"`
	ID    string  `json:"item_id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// RecommendResponse is the body returned by POST /recommend.
type RecommendResponse struct {
	Title           string   `json:"title"`
	Recommendations []string `json:"recommendations"`
	// Matched is the catalog title the query resolved to; empty when nothing matched.
	Matched string `json:"matched,omitempty"`
	// Scored carries the similarity of each recommendation, in the same order.
	Scored []Recommendation `json:"scored,omitempty"`
	// Suggestions are close catalog titles offered when the query matched nothing.
	Suggestions  []string `json:"suggestions,omitempty"`
	ModelVersion int      `json:"model_version,omitempty"`
	QueryTime    int64    `json:"query_time_ms"`
}
