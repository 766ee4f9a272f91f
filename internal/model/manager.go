package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/eiga/internal/artifact"
	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/metrics"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/registry"
	"github.com/hyperjump/eiga/internal/titleindex"
	"go.uber.org/zap"
)

const retireAfter = time.Minute

// Manager resolves the configured model reference and keeps the holder up to date.
type Manager struct {
	registry registry.Registry
	store    artifact.Store
	holder   *Holder
	name     string
	ref      string
	logger   *zap.Logger
	mu       sync.Mutex // serializes loads; readers use the holder
	onSwap   []func(*Snapshot)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets a logger for load and swap events.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// OnSwap registers a callback run after every successful publish.
func OnSwap(fn func(*Snapshot)) ManagerOption {
	return func(m *Manager) { m.onSwap = append(m.onSwap, fn) }
}

// NewManager creates a manager serving models:/<name>/<ref>.
func NewManager(reg registry.Registry, store artifact.Store, holder *Holder, name, ref string, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: reg,
		store:    store,
		holder:   holder,
		name:     name,
		ref:      ref,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// URI returns the model reference being served.
func (m *Manager) URI() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uriLocked()
}

func (m *Manager) uriLocked() string {
	return registry.FormatURI(m.name, m.ref)
}

// Holder returns the holder the manager publishes to.
func (m *Manager) Holder() *Holder {
	return m.holder
}

// Load resolves the reference and publishes that version unconditionally.
func (m *Manager) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, err := m.registry.Resolve(ctx, m.name, m.ref)
	if err != nil {
		metrics.BundleLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve %s: %w", m.uriLocked(), err)
	}
	return m.loadLocked(ctx, mv)
}

// Refresh re-resolves the reference and reloads only when it now names a different
// version. It reports whether a new snapshot was published.
func (m *Manager) Refresh(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, err := m.registry.Resolve(ctx, m.name, m.ref)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", m.uriLocked(), err)
	}
	if cur, err := m.holder.Current(); err == nil &&
		cur.Version.Version == mv.Version && cur.Version.Checksum == mv.Checksum {
		return false, nil
	}
	if _, err := m.loadLocked(ctx, mv); err != nil {
		return false, err
	}
	return true, nil
}

// SetRef switches the served reference and loads it. On failure the previous reference
// and snapshot stay in place.
func (m *Manager) SetRef(ctx context.Context, ref string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, err := m.registry.Resolve(ctx, m.name, ref)
	if err != nil {
		metrics.BundleLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve %s: %w", registry.FormatURI(m.name, ref), err)
	}
	prev := m.ref
	m.ref = ref
	snap, err := m.loadLocked(ctx, mv)
	if err != nil {
		m.ref = prev
		return nil, err
	}
	return snap, nil
}

func (m *Manager) loadLocked(ctx context.Context, mv *models.ModelVersion) (*Snapshot, error) {
	start := time.Now()
	b, err := bundle.Load(ctx, m.store, mv.Location, mv.Checksum)
	if err != nil {
		metrics.BundleLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load %s version %d: %w", mv.Name, mv.Version, err)
	}
	titles, err := titleindex.Build(b.Catalog.Titles())
	if err != nil {
		metrics.BundleLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build title index: %w", err)
	}
	snap := &Snapshot{
		Bundle:   b,
		Titles:   titles,
		Version:  *mv,
		LoadedAt: time.Now(),
	}
	if old := m.holder.Swap(snap); old != nil && old.Titles != nil {
		// In-flight suggestion lookups may still hold the old index.
		time.AfterFunc(retireAfter, func() { _ = old.Titles.Close() })
	}

	metrics.BundleLoads.WithLabelValues("ok").Inc()
	metrics.BundleItems.Set(float64(b.Len()))
	metrics.BundleVersion.Set(float64(mv.Version))
	m.logger.Info("model loaded",
		zap.String("model", mv.Name),
		zap.Int("version", mv.Version),
		zap.Int("items", b.Len()),
		zap.Duration("took", time.Since(start)),
	)
	for _, fn := range m.onSwap {
		fn(snap)
	}
	return snap, nil
}
