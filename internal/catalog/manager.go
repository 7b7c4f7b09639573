package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/strongdm/mdc/internal/eventlog"
	"github.com/strongdm/mdc/internal/schema"
)

// DefaultTTL is how long a loaded catalog is served before Get reloads it.
const DefaultTTL = 360 * time.Minute

// ErrNoSource is returned by Get when the manager has nothing to load from.
var ErrNoSource = errors.New("no catalog source configured")

// Observer is told about every load attempt.
type Observer func(source string, components int, took time.Duration, err error)

// Options configures a Manager.
type Options struct {
	TTL      time.Duration
	Logger   *eventlog.Logger
	Observer Observer
}

// Manager caches the catalog from a Source. Concurrent refreshes share one
// load, and a failed load keeps serving the previous catalog.
type Manager struct {
	source   Source
	ttl      time.Duration
	logger   *eventlog.Logger
	observer Observer
	now      func() time.Time
	group    singleflight.Group

	mu       sync.RWMutex
	catalog  schema.Catalog
	loadedAt time.Time
	lastErr  error
	subs     map[int]func(schema.Catalog)
	nextSub  int
}

// NewManager returns a manager over src. A nil src serves an empty catalog.
func NewManager(src Source, opts Options) *Manager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		source:   src,
		ttl:      ttl,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      time.Now,
		subs:     make(map[int]func(schema.Catalog)),
	}
}

// Source returns the configured source, or nil.
func (m *Manager) Source() Source { return m.source }

// TTL returns the cache lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Catalog returns the cached catalog without loading.
func (m *Manager) Catalog() schema.Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog
}

// Status reports when the catalog was last loaded and the last load error.
func (m *Manager) Status() (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadedAt, m.lastErr
}

// Get returns the catalog, loading it when the cache is empty, expired or
// force is set. On failure the previous catalog is returned with the error.
func (m *Manager) Get(ctx context.Context, force bool) (schema.Catalog, error) {
	m.mu.RLock()
	cached, loadedAt := m.catalog, m.loadedAt
	m.mu.RUnlock()
	if !force && !loadedAt.IsZero() && m.now().Sub(loadedAt) < m.ttl {
		return cached, nil
	}
	if m.source == nil {
		return cached, ErrNoSource
	}

	v, err, _ := m.group.Do("catalog", func() (any, error) {
		return m.refresh(ctx)
	})
	if err != nil {
		return m.Catalog(), err
	}
	return v.(schema.Catalog), nil
}

func (m *Manager) refresh(ctx context.Context) (schema.Catalog, error) {
	start := m.now()
	cat, err := m.source.Load(ctx)
	took := m.now().Sub(start)
	if m.observer != nil {
		m.observer(m.source.String(), len(cat), took, err)
	}
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.logger.Event("catalog.refresh", map[string]any{
			"source": m.source.String(),
			"error":  err,
		})
		return nil, err
	}

	m.mu.Lock()
	m.catalog = cat
	m.loadedAt = m.now()
	m.lastErr = nil
	subs := make([]func(schema.Catalog), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.Event("catalog.refresh", map[string]any{
		"source":     m.source.String(),
		"components": len(cat),
		"took":       took,
	})
	for _, fn := range subs {
		fn(cat)
	}
	return cat, nil
}

// Subscribe registers fn for every successful refresh. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(schema.Catalog)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Run reloads the catalog every TTL until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = m.Get(ctx, true)
		}
	}
}
