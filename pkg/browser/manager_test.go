package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hltvquery/pkg/browser/browsertest"
)

func TestManager_AcquireRequiresInitialize(t *testing.T) {
	manager := NewManager()
	_, err := manager.Acquire(context.Background(), SessionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestManager_AcquireConfiguresSession(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher))

	session, err := manager.Acquire(context.Background(), SessionOptions{
		Headless:   true,
		UserAgent:  "test-agent",
		LaunchArgs: []string{"--no-sandbox"},
		Permissive: true,
	})
	require.NoError(t, err)
	defer manager.Release(session)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, 1, manager.Active())

	require.Len(t, launcher.Browsers, 1)
	b := launcher.Browsers[0]

	require.NotNil(t, launcher.LastOpts.Headless)
	assert.True(t, *launcher.LastOpts.Headless)
	assert.Equal(t, []string{"--no-sandbox"}, launcher.LastOpts.Args)

	require.NotNil(t, b.ContextOpts.Viewport)
	assert.Equal(t, DefaultViewportWidth, b.ContextOpts.Viewport.Width)
	assert.Equal(t, DefaultViewportHeight, b.ContextOpts.Viewport.Height)
	require.NotNil(t, b.ContextOpts.UserAgent)
	assert.Equal(t, "test-agent", *b.ContextOpts.UserAgent)
	require.NotNil(t, b.ContextOpts.BypassCSP)
	assert.True(t, *b.ContextOpts.BypassCSP)
	require.NotNil(t, b.ContextOpts.IgnoreHttpsErrors)
	assert.True(t, *b.ContextOpts.IgnoreHttpsErrors)

	scripts := b.InitScripts()
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], "webdriver")
	assert.Contains(t, scripts[0], "CookieConsent")

	assert.Equal(t, DefaultTimeout, b.Page().DefaultTimeout)
}

func TestManager_CaptureViewport(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher))

	session, err := manager.Acquire(context.Background(), SessionOptions{
		Viewport: &Viewport{Width: 1280, Height: 1080},
		Timeout:  45000,
	})
	require.NoError(t, err)
	defer manager.Release(session)

	b := launcher.Browsers[0]
	assert.Equal(t, 1280, b.ContextOpts.Viewport.Width)
	assert.Nil(t, b.ContextOpts.BypassCSP)
	assert.Equal(t, 45000.0, b.Page().DefaultTimeout)
}

func TestManager_ReleaseClosesInOrder(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher))

	session, err := manager.Acquire(context.Background(), SessionOptions{})
	require.NoError(t, err)

	require.NoError(t, manager.Release(session))
	assert.Equal(t, 0, manager.Active())

	events := launcher.Browsers[0].Events.List()
	assert.Equal(t, []string{"context.new", "page.new", "page.close", "context.close", "browser.close"}, events)

	// A second release is a no-op
	require.NoError(t, manager.Release(session))
	assert.Equal(t, 0, manager.Active())
	assert.Len(t, launcher.Browsers[0].Events.List(), 5)
}

func TestManager_ReleaseContinuesAfterError(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher))

	session, err := manager.Acquire(context.Background(), SessionOptions{})
	require.NoError(t, err)
	launcher.Browsers[0].CloseErr = errors.New("already gone")

	err = manager.Release(session)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close browser")
	assert.True(t, launcher.AllClosed())
}

func TestManager_WithSessionReleasesOnError(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher))

	boom := errors.New("boom")
	err := manager.WithSession(context.Background(), SessionOptions{}, func(s *Session) error {
		assert.Equal(t, 1, manager.Active())
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, manager.Active())
	assert.True(t, launcher.AllClosed())
}

func TestManager_WithSessionReleasesOnPanic(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher))

	assert.Panics(t, func() {
		_ = manager.WithSession(context.Background(), SessionOptions{}, func(s *Session) error {
			panic("handler bug")
		})
	})
	assert.Equal(t, 0, manager.Active())
	assert.True(t, launcher.AllClosed())
}

func TestManager_LaunchFailureFreesSlot(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	launcher.LaunchErr = errors.New("no chromium")
	manager := NewManager(WithLauncher(launcher), WithMaxSessions(1))

	for i := 0; i < 2; i++ {
		_, err := manager.Acquire(context.Background(), SessionOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to launch browser")
	}
	assert.Equal(t, 0, manager.Active())
}

func TestManager_MaxSessionsBlocksUntilRelease(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher), WithMaxSessions(1))

	first, err := manager.Acquire(context.Background(), SessionOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = manager.Acquire(ctx, SessionOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, manager.Release(first))

	second, err := manager.Acquire(context.Background(), SessionOptions{})
	require.NoError(t, err)
	require.NoError(t, manager.Release(second))
	assert.Equal(t, 2, launcher.Launched())
}

func TestManager_SessionsAreNeverReused(t *testing.T) {
	launcher := browsertest.NewLauncher(browsertest.PageScript{})
	manager := NewManager(WithLauncher(launcher))

	var ids []string
	for i := 0; i < 3; i++ {
		err := manager.WithSession(context.Background(), SessionOptions{}, func(s *Session) error {
			ids = append(ids, s.ID)
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, launcher.Launched())
	assert.NotEqual(t, ids[0], ids[1])
	assert.NotEqual(t, ids[1], ids[2])
}
