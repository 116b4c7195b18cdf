package selection

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func players(names ...string) []Candidate {
	out := make([]Candidate, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		token string
		kind  Kind
		index int
		ok    bool
	}{
		{token: "1", kind: PlayerSearch, index: 0, ok: true},
		{token: "5", kind: PlayerSearch, index: 4, ok: true},
		{token: " 3 ", kind: PlayerSearch, index: 2, ok: true},
		{token: "a", kind: MatchResult, index: 0, ok: true},
		{token: "E", kind: MatchResult, index: 4, ok: true},
		{token: "0"},
		{token: "6"},
		{token: "f"},
		{token: "12"},
		{token: "ab"},
		{token: ""},
		{token: "/top5"},
		{token: "好"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.token), func(t *testing.T) {
			kind, index, ok := ParseToken(tt.token)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, IsToken(tt.token))
			if tt.ok {
				assert.Equal(t, tt.kind, kind)
				assert.Equal(t, tt.index, index)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "1", Label(PlayerSearch, 0))
	assert.Equal(t, "5", Label(PlayerSearch, 4))
	assert.Equal(t, "c", Label(MatchResult, 2))
	assert.Equal(t, "", Label(MatchResult, 5))
	assert.Equal(t, "", Label(PlayerSearch, -1))
}

func TestRegisterResolve(t *testing.T) {
	reg := NewRegistry()
	candidates := players("s1mple", "ZywOo", "m0NESY", "donk", "NiKo")
	require.NoError(t, reg.Register("u1", PlayerSearch, candidates))

	got, err := reg.Resolve("u1", "4")
	require.NoError(t, err)
	assert.Equal(t, "donk", got)
}

func TestResolveConsumesEntry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("u1", PlayerSearch, players("a", "b")))

	_, err := reg.Resolve("u1", "1")
	require.NoError(t, err)

	_, err = reg.Resolve("u1", "1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, ok := reg.Pending("u1")
	assert.False(t, ok)
}

func TestResolveMisses(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("u1", PlayerSearch, players("a", "b")))

	_, err := reg.Resolve("nobody", "1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Letter against a digit listing
	_, err = reg.Resolve("u1", "a")
	assert.ErrorIs(t, err, ErrNotFound)

	// Past the end of the list
	_, err = reg.Resolve("u1", "3")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Resolve("u1", "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	// None of the misses consumed the entry
	kind, n, ok := reg.Pending("u1")
	require.True(t, ok)
	assert.Equal(t, PlayerSearch, kind)
	assert.Equal(t, 2, n)

	got, err := reg.Resolve("u1", "2")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestResolveAfterTTL(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(WithClock(clock.Now))
	require.NoError(t, reg.Register("u1", PlayerSearch, players("p1", "p2", "p3", "p4", "p5")))

	clock.Advance(31 * time.Second)

	_, err := reg.Resolve("u1", "3")
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, ErrNotFound)

	// Expired entries are dropped on lookup
	clock.Advance(-31 * time.Second)
	_, err = reg.Resolve("u1", "3")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrExpired)
}

func TestResolveAtTTLBoundary(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(WithClock(clock.Now), WithTTL(30*time.Second))
	require.NoError(t, reg.Register("u1", MatchResult, players("m1", "m2")))

	clock.Advance(30 * time.Second)
	got, err := reg.Resolve("u1", "B")
	require.NoError(t, err)
	assert.Equal(t, "m2", got)
}

func TestRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("u1", PlayerSearch, players("p1", "p2")))
	require.NoError(t, reg.Register("u1", MatchResult, players("m1", "m2", "m3")))

	_, err := reg.Resolve("u1", "1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := reg.Resolve("u1", "c")
	require.NoError(t, err)
	assert.Equal(t, "m3", got)
}

func TestRegisterRejectsBadLists(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Register("u1", PlayerSearch, nil), ErrNoCandidates)
	assert.Error(t, reg.Register("u1", PlayerSearch, players("1", "2", "3", "4", "5", "6")))
	assert.Error(t, reg.Register("u1", Kind(9), players("x")))

	_, _, ok := reg.Pending("u1")
	assert.False(t, ok)
}

func TestRegisterCopiesCandidates(t *testing.T) {
	reg := NewRegistry()
	list := players("p1", "p2")
	require.NoError(t, reg.Register("u1", PlayerSearch, list))
	list[0] = "changed"

	got, err := reg.Resolve("u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got)
}

func TestRoute(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(WithClock(clock.Now))

	_, ok := reg.Route("u1", "good game")
	assert.False(t, ok)

	// Nothing pending: a token is ordinary chat
	_, ok = reg.Route("u1", "1")
	assert.False(t, ok)

	require.NoError(t, reg.Register("u1", MatchResult, players("m1", "m2")))

	// A digit never reaches the letter listing
	_, ok = reg.Route("u1", "1")
	assert.False(t, ok)

	res, ok := reg.Route("u1", "a")
	require.True(t, ok)
	assert.Equal(t, MatchResult, res.Kind)
	assert.Equal(t, "m1", res.Candidate)

	require.NoError(t, reg.Register("u1", PlayerSearch, players("p1")))
	clock.Advance(time.Minute)
	_, ok = reg.Route("u1", "1")
	assert.False(t, ok)
}

func TestSessionsAreIndependent(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("u1", PlayerSearch, players("u1-p1")))
	require.NoError(t, reg.Register("u2", PlayerSearch, players("u2-p1")))

	got, err := reg.Resolve("u2", "1")
	require.NoError(t, err)
	assert.Equal(t, "u2-p1", got)

	got, err = reg.Resolve("u1", "1")
	require.NoError(t, err)
	assert.Equal(t, "u1-p1", got)
}

func TestConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	const sessions = 16

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for j := 0; j < 50; j++ {
				_ = reg.Register(id, PlayerSearch, players(id))
				got, err := reg.Resolve(id, "1")
				if assert.NoError(t, err) {
					assert.Equal(t, id, got)
				}
			}
		}(i)
	}

	// Same-session races: exactly one resolver wins each registration
	var wins sync.WaitGroup
	var mu sync.Mutex
	won := 0
	require.NoError(t, reg.Register("shared", MatchResult, players("only")))
	for i := 0; i < 8; i++ {
		wins.Add(1)
		go func() {
			defer wins.Done()
			if _, err := reg.Resolve("shared", "a"); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	wins.Wait()
	assert.Equal(t, 1, won)
}
