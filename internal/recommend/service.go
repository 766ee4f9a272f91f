package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/model"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/titleindex"
	"go.uber.org/zap"
)

// Service answers requests against whichever snapshot the holder currently publishes.
type Service struct {
	holder          *model.Holder
	cache           *Cache
	policy          MatchPolicy
	defaultTitle    string
	defaultTopK     int
	maxTopK         int
	suggestionLimit int
	logger          *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for query debug output.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithCache enables an LRU result cache of the given capacity.
func WithCache(capacity int) ServiceOption {
	return func(s *Service) { s.cache = NewCache(capacity) }
}

// WithMatchPolicy selects how a query resolves to a catalog item.
func WithMatchPolicy(p MatchPolicy) ServiceOption {
	return func(s *Service) { s.policy = p }
}

// WithDefaults sets the title and top_k used when a request omits them, and the largest
// top_k a request may ask for (0 for no limit).
func WithDefaults(title string, topK, maxTopK int) ServiceOption {
	return func(s *Service) {
		s.defaultTitle = title
		s.defaultTopK = topK
		s.maxTopK = maxTopK
	}
}

// WithSuggestionLimit bounds "did you mean" titles returned on no match; 0 disables them.
func WithSuggestionLimit(n int) ServiceOption {
	return func(s *Service) { s.suggestionLimit = n }
}

// NewService creates a service reading from holder.
func NewService(holder *model.Holder, opts ...ServiceOption) *Service {
	s := &Service{
		holder:          holder,
		policy:          MatchFirst,
		defaultTitle:    "Toy Story",
		defaultTopK:     5,
		suggestionLimit: 5,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready reports whether a model is loaded.
func (s *Service) Ready() bool {
	return s.holder.IsReady()
}

// Invalidate drops cached results. Call it after a model swap.
func (s *Service) Invalidate() {
	s.cache.Purge()
}

// Recommend normalizes req and runs the query.
func (s *Service) Recommend(ctx context.Context, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	title, topK, err := req.Normalize(s.defaultTitle, s.defaultTopK, s.maxTopK)
	if err != nil {
		metrics.Requests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}
	return s.Query(ctx, title, topK)
}

// Query recommends up to topK titles similar to title.
func (s *Service) Query(ctx context.Context, title string, topK int) (*models.RecommendResponse, error) {
	start := time.Now()
	defer func() { metrics.RequestDuration.Observe(time.Since(start).Seconds()) }()

	if err := ctx.Err(); err != nil {
		metrics.Requests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	snap, err := s.holder.Current()
	if err != nil {
		metrics.Requests.WithLabelValues(metrics.OutcomeNotReady).Inc()
		return nil, err
	}

	key := CacheKey(snap.Version.Version, title, topK)
	res, hit := s.cache.Get(key)
	if s.cache != nil {
		if hit {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}
	if !hit {
		res, err = Recommend(snap.Bundle, title, topK, s.policy)
		if err != nil {
			outcome := metrics.OutcomeError
			if errors.Is(err, ErrInvalidArgument) {
				outcome = metrics.OutcomeInvalid
			}
			metrics.Requests.WithLabelValues(outcome).Inc()
			return nil, err
		}
		s.cache.Set(key, res)
	}

	resp := &models.RecommendResponse{
		Title:           title,
		Recommendations: res.Titles(),
		Scored:          res.Recommendations,
		ModelVersion:    snap.Version.Version,
	}
	if res.Found() {
		resp.Matched = res.MatchedItem.Title
		metrics.Requests.WithLabelValues(metrics.OutcomeOK).Inc()
	} else {
		metrics.Requests.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		resp.Suggestions = s.suggest(snap, title)
	}
	resp.QueryTime = time.Since(start).Milliseconds()

	s.logger.Debug("recommend",
		zap.String("title", title),
		zap.Int("top_k", topK),
		zap.String("matched", resp.Matched),
		zap.Int("results", len(resp.Recommendations)),
		zap.Bool("cached", hit),
	)
	return resp, nil
}

func (s *Service) suggest(snap *model.Snapshot, title string) []string {
	if s.suggestionLimit <= 0 || snap.Titles == nil {
		return nil
	}
	titles, err := snap.Titles.Titles(title, s.suggestionLimit)
	if err != nil {
		s.logger.Warn("title suggestions failed", zap.String("title", title), zap.Error(err))
		return nil
	}
	return titles
}

// SuggestTitles returns catalog titles close to q, for autocomplete.
func (s *Service) SuggestTitles(ctx context.Context, q string, limit int) ([]titleindex.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	if snap.Titles == nil {
		return []titleindex.Suggestion{}, nil
	}
	return snap.Titles.Suggest(q, limit)
}
