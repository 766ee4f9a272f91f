// Package model owns the bundle currently served: loading it from the registry and
// publishing it to readers with a single atomic swap.
package model

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/titleindex"
)

// ErrNotReady is returned when no bundle has been published yet.
var ErrNotReady = errors.New("model not ready")

// Snapshot is one published model: the bundle plus what was derived from it at load time.
type Snapshot struct {
	Bundle   *bundle.Bundle
	Titles   *titleindex.Index
	Version  models.ModelVersion
	LoadedAt time.Time
}

// Holder publishes the current snapshot. Readers never block; a query keeps the
// snapshot it loaded even if a newer one is swapped in meanwhile.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns an empty holder.
func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the published snapshot or ErrNotReady.
func (h *Holder) Current() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, ErrNotReady
	}
	return s, nil
}

// IsReady reports whether a snapshot has been published.
func (h *Holder) IsReady() bool {
	return h.current.Load() != nil
}

// Swap publishes s and returns the snapshot it replaced, if any.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}
