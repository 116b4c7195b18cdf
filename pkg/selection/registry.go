// Package selection remembers the candidate lists shown to a chat session
// so that a short follow-up token ("3", "b") can pick one of them.
package selection

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/hltvquery/pkg/logging"
)

// Kind identifies which listing a pending selection came from. Each kind
// has its own token alphabet.
type Kind int

const (
	// PlayerSearch selections are picked with digits 1..5.
	PlayerSearch Kind = iota + 1
	// MatchResult selections are picked with letters a..e.
	MatchResult
)

func (k Kind) String() string {
	switch k {
	case PlayerSearch:
		return "player-search"
	case MatchResult:
		return "match-result"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	// DefaultTTL is how long a listing accepts follow-up tokens.
	DefaultTTL = 30 * time.Second

	// MaxCandidates is the size of each token alphabet.
	MaxCandidates = 5
)

var (
	// ErrNotFound is returned when a token does not address a live entry.
	ErrNotFound = errors.New("selection not found")

	// ErrExpired is returned when the entry is older than the TTL. It
	// matches ErrNotFound.
	ErrExpired = fmt.Errorf("%w: expired", ErrNotFound)

	// ErrNoCandidates is returned when registering an empty list.
	ErrNoCandidates = errors.New("no candidates to register")
)

// Candidate is an opaque reference handed back on resolution.
type Candidate = any

// Resolution is a successfully resolved follow-up.
type Resolution struct {
	Kind      Kind
	Candidate Candidate
}

type entry struct {
	kind       Kind
	candidates []Candidate
	createdAt  time.Time
}

// Registry holds at most one pending selection per session. It is safe for
// concurrent use; all access is serialized.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*entry
	ttl     time.Duration
	now     func() time.Time
	log     *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets how long entries stay resolvable.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithLogger sets the registry's logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		pending: make(map[string]*entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores candidates for sessionID, replacing whatever was pending
// for that session.
func (r *Registry) Register(sessionID string, kind Kind, candidates []Candidate) error {
	if len(candidates) == 0 {
		return ErrNoCandidates
	}
	if len(candidates) > MaxCandidates {
		return fmt.Errorf("%d candidates exceed the %d a token can address", len(candidates), MaxCandidates)
	}
	if kind != PlayerSearch && kind != MatchResult {
		return fmt.Errorf("unknown selection kind %v", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.pending[sessionID]; ok {
		r.log.Debugf("session %s: replacing pending %s selection", sessionID, prev.kind)
	}
	r.pending[sessionID] = &entry{
		kind:       kind,
		candidates: append([]Candidate(nil), candidates...),
		createdAt:  r.now(),
	}
	return nil
}

// Resolve returns the candidate token addresses and consumes the entry.
// A token of the wrong kind, an index past the list or a missing entry
// yields ErrNotFound and leaves the entry untouched; an entry older than
// the TTL yields ErrExpired and is dropped.
func (r *Registry) Resolve(sessionID, token string) (Candidate, error) {
	kind, index, ok := ParseToken(token)
	if !ok {
		return nil, ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.now().Sub(e.createdAt) > r.ttl {
		delete(r.pending, sessionID)
		return nil, ErrExpired
	}
	if e.kind != kind {
		return nil, ErrNotFound
	}
	if index >= len(e.candidates) {
		return nil, ErrNotFound
	}

	delete(r.pending, sessionID)
	return e.candidates[index], nil
}

// Route is the chat interceptor's entry point. It reports false for text
// that is not a token and for tokens that address nothing, since those are
// ordinary chat traffic. The two token alphabets are disjoint, so a token
// that misses its own kind can never address the other kind's entry.
func (r *Registry) Route(sessionID, text string) (Resolution, bool) {
	kind, _, ok := ParseToken(text)
	if !ok {
		return Resolution{}, false
	}

	candidate, err := r.Resolve(sessionID, text)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			r.log.Debugf("session %s: %s token %q arrived after %s", sessionID, kind, strings.TrimSpace(text), r.ttl)
		}
		return Resolution{}, false
	}
	return Resolution{Kind: kind, Candidate: candidate}, true
}

// Pending reports the kind and size of the live entry for sessionID.
func (r *Registry) Pending(sessionID string) (Kind, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[sessionID]
	if !ok || r.now().Sub(e.createdAt) > r.ttl {
		return 0, 0, false
	}
	return e.kind, len(e.candidates), true
}

// ParseToken maps a follow-up token to its kind and zero-based index.
// Digits 1..5 address PlayerSearch, letters a..e (any case) address
// MatchResult. Surrounding whitespace is ignored.
func ParseToken(token string) (Kind, int, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if len(t) != 1 {
		return 0, 0, false
	}
	switch c := t[0]; {
	case c >= '1' && c <= '0'+MaxCandidates:
		return PlayerSearch, int(c - '1'), true
	case c >= 'a' && c < 'a'+MaxCandidates:
		return MatchResult, int(c - 'a'), true
	default:
		return 0, 0, false
	}
}

// IsToken reports whether text has the shape of a follow-up token.
func IsToken(text string) bool {
	_, _, ok := ParseToken(text)
	return ok
}

// Label returns the token that addresses index for kind, or "" if index is
// out of range.
func Label(kind Kind, index int) string {
	if index < 0 || index >= MaxCandidates {
		return ""
	}
	switch kind {
	case PlayerSearch:
		return string(rune('1' + index))
	case MatchResult:
		return string(rune('a' + index))
	default:
		return ""
	}
}
