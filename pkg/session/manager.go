package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/cvflow/internal/logging"
	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/aretw0/cvflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates pipeline document access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.GraphStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry. Defaults to DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.GraphStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Load retrieves a stored document.
func (m *Manager) Load(ctx context.Context, name string) (*domain.GraphDocument, error) {
	var doc *domain.GraphDocument
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		doc, err = m.store.Load(ctx, name)
		return err
	})
	return doc, err
}

// Save persists a document.
func (m *Manager) Save(ctx context.Context, name string, doc *domain.GraphDocument) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Save(ctx, name, doc)
	})
}

// Update runs a read-modify-write cycle on a document under the lock.
// A missing document starts out empty with the given name.
func (m *Manager) Update(ctx context.Context, name string, fn func(doc *domain.GraphDocument) error) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		doc, err := m.store.Load(ctx, name)
		if errors.Is(err, domain.ErrPipelineNotFound) {
			doc, err = &domain.GraphDocument{Name: name}, nil
		}
		if err != nil {
			return fmt.Errorf("failed to load pipeline %s: %w", name, err)
		}
		if err := fn(doc); err != nil {
			return err
		}
		return m.store.Save(ctx, name, doc)
	})
}

// Open hydrates p from the stored document. When none exists, p's current
// graph is saved to reserve the name. It reports whether a document was loaded.
func (m *Manager) Open(ctx context.Context, name string, p ports.Pipeline) (bool, error) {
	loaded := false
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		doc, err := m.store.Load(ctx, name)
		if err == nil {
			if err := p.Import(doc); err != nil {
				return fmt.Errorf("failed to import pipeline %s: %w", name, err)
			}
			loaded = true
			return nil
		}
		if !errors.Is(err, domain.ErrPipelineNotFound) {
			return fmt.Errorf("failed to check pipeline existence: %w", err)
		}

		doc = p.Export()
		doc.Name = name
		if err := m.store.Save(ctx, name, doc); err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		return nil
	})
	return loaded, err
}

// Commit persists p's live graph under name.
func (m *Manager) Commit(ctx context.Context, name string, p ports.Pipeline) error {
	doc := p.Export()
	doc.Name = name
	return m.Save(ctx, name, doc)
}

// Delete removes the document from the store.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying store.
func (m *Manager) Store() ports.GraphStore {
	return m.store
}

// WithLock executes fn while holding the lock for name.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, name, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"pipeline", name,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
