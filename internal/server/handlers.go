package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/model"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/hyperjump/eiga/internal/registry"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendRequest
	if err := decodeOptional(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := s.service.Recommend(r.Context(), &req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.service.Ready() {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// modelInfo describes the served snapshot.
type modelInfo struct {
	URI            string              `json:"uri"`
	Version        models.ModelVersion `json:"version"`
	NumItems       int                 `json:"num_items"`
	VocabularySize int                 `json:"vocabulary_size"`
	FittedAt       time.Time           `json:"fitted_at"`
	LoadedAt       time.Time           `json:"loaded_at"`
}

func (s *Server) snapshotInfo(snap *model.Snapshot) modelInfo {
	return modelInfo{
		URI:            s.loader.URI(),
		Version:        snap.Version,
		NumItems:       snap.Bundle.Len(),
		VocabularySize: snap.Bundle.Metadata.VocabularySize,
		FittedAt:       snap.Bundle.Metadata.FittedAt,
		LoadedAt:       snap.LoadedAt,
	}
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	snap, err := s.loader.Holder().Current()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.snapshotInfo(snap))
}

type reloadRequest struct {
	Ref string `json:"ref" validate:"omitempty,excludesall=/ "`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var req reloadRequest
	if err := decodeOptional(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid ref")
		return
	}
	s.logger.Info("model reload requested", zap.String("ref", req.Ref))
	var (
		snap *model.Snapshot
		err  error
	)
	if req.Ref != "" {
		snap, err = s.loader.SetRef(r.Context(), req.Ref)
	} else {
		snap, err = s.loader.Load(r.Context())
	}
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.snapshotInfo(snap))
}

type titlesQuery struct {
	Q     string `validate:"required,max=200"`
	Limit int    `validate:"min=1,max=50"`
}

func (s *Server) handleTitles(w http.ResponseWriter, r *http.Request) {
	q := titlesQuery{Q: r.URL.Query().Get("q"), Limit: 10}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	if err := s.validate.Struct(q); err != nil {
		s.respondError(w, http.StatusBadRequest, "q is required and limit must be between 1 and 50")
		return
	}
	suggestions, err := s.service.SuggestTitles(r.Context(), q.Q, q.Limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"query": q.Q, "titles": suggestions})
}

// decodeOptional decodes a JSON body into v; an empty body leaves v untouched.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest), errors.Is(err, recommend.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, bundle.ErrArtifactNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
