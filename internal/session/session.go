// Package session keeps the per-player state that a browser would hold in
// session storage: the last known location and the authenticated address.
package session

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/domain"
	"github.com/couchcryptid/capyquest-claim/internal/location"
	"github.com/couchcryptid/capyquest-claim/internal/observability"
)

// Storage is an in-memory session storage bucket.
type Storage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStorage creates an empty bucket.
func NewStorage() *Storage {
	return &Storage{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *Storage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return slices.Clone(v), ok
}

// Set stores a copy of value under key.
func (s *Storage) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = slices.Clone(value)
}

// Session is one authenticated player session.
type Session struct {
	ID       string
	Address  string
	Storage  *Storage
	Location *location.Provider

	platform domain.LocationPlatform
}

// Reported returns the device-fed platform of the session, if it has one.
func (s *Session) Reported() (*location.ReportedPlatform, bool) {
	rp, ok := s.platform.(*location.ReportedPlatform)
	return rp, ok
}

// PlatformFactory returns the location platform for a new session. It may
// return nil when the deployment has no location source.
type PlatformFactory func() domain.LocationPlatform

// Manager creates and expires sessions.
type Manager struct {
	mu          sync.Mutex
	sessions    *expirable.LRU[string, *Session]
	newPlatform PlatformFactory
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewManager creates a Manager holding at most size sessions, each expiring
// ttl after its last use.
func NewManager(size int, ttl time.Duration, newPlatform PlatformFactory, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		sessions:    expirable.NewLRU[string, *Session](size, nil, ttl),
		newPlatform: newPlatform,
		logger:      logger,
		metrics:     metrics,
	}
}

// Get returns the session for id, creating it on first use. A session whose
// address changed is replaced, since its stored state belongs to someone else.
func (m *Manager) Get(id, address string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions.Get(id); ok && domain.SameAddress(s.Address, address) {
		m.sessions.Add(id, s)
		return s
	}

	var platform domain.LocationPlatform
	if m.newPlatform != nil {
		platform = m.newPlatform()
	}
	store := NewStorage()
	s := &Session{
		ID:       id,
		Address:  address,
		Storage:  store,
		Location: location.NewProvider(platform, store, m.logger.With(zap.String("session", id)), m.metrics),
		platform: platform,
	}
	m.sessions.Add(id, s)
	m.logger.Debug("session created", zap.String("session", id), zap.String("address", address))
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	return m.sessions.Peek(id)
}

// Addresses lists the distinct wallet addresses of live sessions.
func (m *Manager) Addresses() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range m.sessions.Values() {
		key := strings.ToLower(s.Address)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s.Address)
	}
	return out
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}
