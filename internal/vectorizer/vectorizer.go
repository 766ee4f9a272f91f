// Package vectorizer converts item titles into L2-normalized TF-IDF vectors over a bounded vocabulary.
package vectorizer

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/hyperjump/eiga/internal/vector"
)

// DefaultMaxFeatures is the vocabulary bound used when none is configured.
const DefaultMaxFeatures = 5000

var (
	// ErrEmptyCorpus is returned when fitting on zero titles.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEmptyVocabulary is returned when no term survives tokenization and stop word removal.
	ErrEmptyVocabulary = errors.New("empty vocabulary")
	// ErrNotFitted is returned when transforming before Fit or FromState.
	ErrNotFitted = errors.New("vectorizer is not fitted")
)

// Vectorizer is a TF-IDF model. After Fit its vocabulary and IDF weights are frozen.
type Vectorizer struct {
	maxFeatures int
	stopWords   analysis.TokenMap
	terms       []string
	columns     map[string]int32
	idf         []float64
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithMaxFeatures bounds the vocabulary size. Values <= 0 select DefaultMaxFeatures.
func WithMaxFeatures(n int) Option {
	return func(v *Vectorizer) {
		if n > 0 {
			v.maxFeatures = n
		}
	}
}

// WithStopWords replaces the English stop word set.
func WithStopWords(words []string) Option {
	return func(v *Vectorizer) {
		tm := analysis.NewTokenMap()
		for _, w := range words {
			tm.AddToken(w)
		}
		v.stopWords = tm
	}
}

// New returns an unfitted vectorizer.
func New(opts ...Option) *Vectorizer {
	v := &Vectorizer{
		maxFeatures: DefaultMaxFeatures,
		stopWords:   EnglishStopWords(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Fit learns the vocabulary and IDF weights from titles.
// Terms are ranked by total frequency across the corpus; ties keep first-seen order.
func (v *Vectorizer) Fit(titles []string) error {
	if len(titles) == 0 {
		return ErrEmptyCorpus
	}

	type termStats struct {
		term  string
		order int
		freq  int
		df    int
	}
	stats := make(map[string]*termStats)
	var seen []*termStats
	for _, title := range titles {
		inDoc := make(map[string]bool)
		for _, tok := range Tokenize(title, v.stopWords) {
			st, ok := stats[tok]
			if !ok {
				st = &termStats{term: tok, order: len(seen)}
				stats[tok] = st
				seen = append(seen, st)
			}
			st.freq++
			if !inDoc[tok] {
				inDoc[tok] = true
				st.df++
			}
		}
	}
	if len(seen) == 0 {
		return ErrEmptyVocabulary
	}

	ranked := slices.Clone(seen)
	slices.SortStableFunc(ranked, func(a, b *termStats) int {
		return cmp.Compare(b.freq, a.freq)
	})
	if len(ranked) > v.maxFeatures {
		ranked = ranked[:v.maxFeatures]
	}
	// Columns follow first-seen order among kept terms.
	slices.SortFunc(ranked, func(a, b *termStats) int {
		return cmp.Compare(a.order, b.order)
	})

	n := float64(len(titles))
	v.terms = make([]string, len(ranked))
	v.idf = make([]float64, len(ranked))
	v.columns = make(map[string]int32, len(ranked))
	for col, st := range ranked {
		v.terms[col] = st.term
		v.idf[col] = math.Log((1+n)/(1+float64(st.df))) + 1
		v.columns[st.term] = int32(col)
	}
	return nil
}

// Transform maps titles into the frozen vector space. Unknown terms are ignored;
// a title with no known term yields a zero vector.
func (v *Vectorizer) Transform(titles []string) ([]vector.Sparse, error) {
	if v.columns == nil {
		return nil, ErrNotFitted
	}
	out := make([]vector.Sparse, len(titles))
	for i, title := range titles {
		out[i] = v.transformOne(title)
	}
	return out, nil
}

// FitTransform fits on titles and returns their vectors.
func (v *Vectorizer) FitTransform(titles []string) ([]vector.Sparse, error) {
	if err := v.Fit(titles); err != nil {
		return nil, err
	}
	return v.Transform(titles)
}

func (v *Vectorizer) transformOne(title string) vector.Sparse {
	counts := make(map[int32]int)
	for _, tok := range Tokenize(title, v.stopWords) {
		if col, ok := v.columns[tok]; ok {
			counts[col]++
		}
	}
	s := vector.Sparse{
		Indices: make([]int32, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for col := range counts {
		s.Indices = append(s.Indices, col)
	}
	slices.Sort(s.Indices)
	for _, col := range s.Indices {
		s.Values = append(s.Values, float64(counts[col])*v.idf[col])
	}
	vector.NormalizeL2(s)
	return s
}

// Vocabulary returns the kept terms in column order.
func (v *Vectorizer) Vocabulary() []string {
	return slices.Clone(v.terms)
}

// MaxFeatures returns the configured vocabulary bound.
func (v *Vectorizer) MaxFeatures() int {
	return v.maxFeatures
}

// State is the persisted form of a fitted vectorizer.
type State struct {
	Terms       []string  `msgpack:"terms"`
	IDF         []float64 `msgpack:"idf"`
	MaxFeatures int       `msgpack:"max_features"`
}

// State returns the fitted vocabulary and IDF weights.
func (v *Vectorizer) State() State {
	return State{
		Terms:       slices.Clone(v.terms),
		IDF:         slices.Clone(v.idf),
		MaxFeatures: v.maxFeatures,
	}
}

// FromState restores a fitted vectorizer. It uses the English stop word set unless overridden by opts.
func FromState(st State, opts ...Option) (*Vectorizer, error) {
	if len(st.Terms) == 0 {
		return nil, ErrEmptyVocabulary
	}
	if len(st.Terms) != len(st.IDF) {
		return nil, fmt.Errorf("vocabulary size %d does not match idf size %d", len(st.Terms), len(st.IDF))
	}
	v := New(append([]Option{WithMaxFeatures(st.MaxFeatures)}, opts...)...)
	v.terms = slices.Clone(st.Terms)
	v.idf = slices.Clone(st.IDF)
	v.columns = make(map[string]int32, len(st.Terms))
	for col, term := range st.Terms {
		if _, dup := v.columns[term]; dup {
			return nil, fmt.Errorf("duplicate vocabulary term %q", term)
		}
		v.columns[term] = int32(col)
	}
	return v, nil
}
