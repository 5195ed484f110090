package tenancy

import (
	"context"
	"sync"
	"time"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
)

type memoryPin struct {
	sc      domain.StoreContext
	expires time.Time
}

// MemoryPinStore is a process-local session pin store used when Redis is not configured.
type MemoryPinStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	pins map[string]memoryPin
	now  func() time.Time
}

func NewMemoryPinStore(ttl time.Duration) *MemoryPinStore {
	return &MemoryPinStore{ttl: ttl, pins: make(map[string]memoryPin), now: time.Now}
}

func (s *MemoryPinStore) GetPin(_ context.Context, sessionID string) (*domain.StoreContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.live(sessionID)
	if !ok {
		return nil, nil
	}
	sc := p.sc
	return &sc, nil
}

func (s *MemoryPinStore) PinIfAbsent(_ context.Context, sessionID string, sc domain.StoreContext) (domain.StoreContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.live(sessionID); ok {
		return p.sc, nil
	}
	p := memoryPin{sc: sc}
	if s.ttl > 0 {
		p.expires = s.now().Add(s.ttl)
	}
	s.pins[sessionID] = p
	return sc, nil
}

// live must be called with mu held
func (s *MemoryPinStore) live(sessionID string) (memoryPin, bool) {
	p, ok := s.pins[sessionID]
	if !ok {
		return memoryPin{}, false
	}
	if !p.expires.IsZero() && !s.now().Before(p.expires) {
		delete(s.pins, sessionID)
		return memoryPin{}, false
	}
	return p, true
}
