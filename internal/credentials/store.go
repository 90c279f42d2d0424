package credentials

import (
	"sync"
	"time"

	"github.com/desertthunder/vkpl/internal/models"
)

// Store keeps credentials for one scope.
//
// Per-user entries are keyed by conversation id and never read across keys.
type Store struct {
	mu      sync.Mutex
	scope   models.Scope
	service models.Credential
	entries map[int64]models.Credential
	now     func() time.Time
}

// Stats is a point-in-time summary of a [Store].
type Stats struct {
	Scope   models.Scope `json:"-"`
	Entries int          `json:"entries"`
	Valid   int          `json:"valid"`
}

// NewServiceStore creates a store holding one shared credential.
func NewServiceStore(token string, valid bool) *Store {
	return &Store{
		scope:   models.ScopeService,
		service: models.Credential{Token: token, Scope: models.ScopeService, Valid: valid},
		now:     time.Now,
	}
}

// NewPerUserStore creates an empty per-conversation store.
func NewPerUserStore() *Store {
	return &Store{
		scope:   models.ScopePerUser,
		entries: make(map[int64]models.Credential),
		now:     time.Now,
	}
}

// Scope returns the scope the store was created with.
func (s *Store) Scope() models.Scope {
	return s.scope
}

// Get returns the credential for key. In service scope key is ignored.
func (s *Store) Get(key int64) (models.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope == models.ScopeService {
		return s.service, s.service.Token != ""
	}
	cred, ok := s.entries[key]
	return cred, ok
}

// Usable reports whether the credential for key exists, is valid and has not expired.
func (s *Store) Usable(key int64) bool {
	cred, ok := s.Get(key)
	return ok && cred.Usable(s.now())
}

// Set stores a validated token for key. A zero expiry means the token does not expire.
func (s *Store) Set(key int64, token string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope == models.ScopeService {
		s.service = models.Credential{Token: token, Scope: models.ScopeService, Valid: true, Expiry: expiry}
		return
	}
	s.entries[key] = models.Credential{
		Token:  token,
		Scope:  models.ScopePerUser,
		Owner:  key,
		Valid:  true,
		Expiry: expiry,
	}
}

// Invalidate marks the credential for key as rejected without dropping it.
func (s *Store) Invalidate(key int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope == models.ScopeService {
		s.service.Valid = false
		return
	}
	if cred, ok := s.entries[key]; ok {
		cred.Valid = false
		s.entries[key] = cred
	}
}

// Forget drops the per-user entry for key. It is a no-op in service scope.
func (s *Store) Forget(key int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope == models.ScopePerUser {
		delete(s.entries, key)
	}
}

// Stats counts stored and usable credentials.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.scope == models.ScopeService {
		stats := Stats{Scope: s.scope}
		if s.service.Token != "" {
			stats.Entries = 1
		}
		if s.service.Usable(now) {
			stats.Valid = 1
		}
		return stats
	}

	stats := Stats{Scope: s.scope, Entries: len(s.entries)}
	for _, cred := range s.entries {
		if cred.Usable(now) {
			stats.Valid++
		}
	}
	return stats
}
