package management

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type storedPage struct {
	page  *Page
	owner string
	seen  time.Time
}

// Store keeps the page runtimes of all sessions keyed by page token.
// A page is dropped when it was not used for the ttl.
type Store struct {
	mu    sync.Mutex
	pages map[string]*storedPage
	ttl   time.Duration
	now   func() time.Time
}

// NewStore creates a store expiring pages after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Store{pages: make(map[string]*storedPage), ttl: ttl, now: time.Now}
}

// NewToken returns a fresh page token.
func NewToken() string {
	return uuid.New().String()
}

// BasePath is the endpoint prefix of the page with token.
func BasePath(token string) string {
	return "/p/" + token
}

// Put stores p for the session owner under token.
func (s *Store) Put(token, owner string, p *Page) {
	s.mu.Lock()
	s.pages[token] = &storedPage{page: p, owner: owner, seen: s.now()}
	s.mu.Unlock()
}

// Get returns the page of token if it belongs to owner and has not expired.
func (s *Store) Get(token, owner string) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.pages[token]
	if !ok || sp.owner != owner {
		return nil, false
	}
	now := s.now()
	if now.Sub(sp.seen) > s.ttl {
		delete(s.pages, token)
		return nil, false
	}
	sp.seen = now
	return sp.page, true
}

// DropOwner removes every page of a session, e.g. on logout.
func (s *Store) DropOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, sp := range s.pages {
		if sp.owner == owner {
			delete(s.pages, token)
			n++
		}
	}
	return n
}

// Sweep removes expired pages and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for token, sp := range s.pages {
		if now.Sub(sp.seen) > s.ttl {
			delete(s.pages, token)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}
