package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hltvquery/pkg/catalog"
	"github.com/entrhq/hltvquery/pkg/fetch"
	"github.com/entrhq/hltvquery/pkg/hltv"
	"github.com/entrhq/hltvquery/pkg/imaging"
	"github.com/entrhq/hltvquery/pkg/selection"
)

const base = "https://www.hltv.org"

// fakeFetcher serves fixtures from the hltv package by URL.
type fakeFetcher struct {
	mu         sync.Mutex
	pages      map[string]string
	fetchErr   error
	captureErr error
	fetched    []string
	captures   []fetch.CaptureRequest
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) (*goquery.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	name, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", url)
	}
	file, err := os.Open(filepath.Join("..", "hltv", "testdata", name))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return goquery.NewDocumentFromReader(file)
}

func (f *fakeFetcher) CapturePage(_ context.Context, req fetch.CaptureRequest) ([]imaging.RegionCapture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, req)
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	regions := make([]imaging.RegionCapture, len(req.Regions))
	for i, r := range req.Regions {
		regions[i] = imaging.RegionCapture{Name: r.Name, Path: r.Name + ".png", NominalHeight: r.NominalHeight}
	}
	return regions, nil
}

type composeCall struct {
	regions int
	width   int
	name    string
}

type fakeComposer struct {
	calls []composeCall
	err   error
}

func (c *fakeComposer) Compose(regions []imaging.RegionCapture, width int, name string) (string, error) {
	c.calls = append(c.calls, composeCall{regions: len(regions), width: width, name: name})
	if c.err != nil {
		return "", c.err
	}
	return filepath.Join("shots", name+"_merged.png"), nil
}

type fakeTeams struct {
	teams []catalog.TeamRecord
	err   error
}

func (f *fakeTeams) Find(_ context.Context, name string) (catalog.TeamRecord, bool, error) {
	if f.err != nil {
		return catalog.TeamRecord{}, false, f.err
	}
	for _, t := range f.teams {
		if strings.EqualFold(t.Name, name) {
			return t, true, nil
		}
	}
	return catalog.TeamRecord{}, false, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	bot      *Bot
	fetcher  *fakeFetcher
	composer *fakeComposer
	clock    *clock
	replies  []Reply
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	site := hltv.NewSite(base, nil)
	h := &harness{
		fetcher: &fakeFetcher{pages: map[string]string{
			site.RankingURL():          "ranking.html",
			site.MatchesURL():          "matches.html",
			site.ResultsURL():          "results.html",
			site.StatsURL():            "stats.html",
			site.SearchURL("s1mple"):   "search.html",
			site.TeamOverviewURL(4608): "team_overview.html",
		}},
		composer: &fakeComposer{},
		clock:    &clock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}

	b, err := New(Deps{
		Site:       site,
		Fetcher:    h.fetcher,
		Composer:   h.composer,
		Teams:      &fakeTeams{teams: []catalog.TeamRecord{{ID: 4608, Name: "Natus Vincere"}}},
		Selections: selection.NewRegistry(selection.WithClock(h.clock.Now)),
	})
	require.NoError(t, err)
	h.bot = b
	return h
}

func (h *harness) send(session, text string) bool {
	h.replies = nil
	return h.bot.Handle(context.Background(), Message{SessionID: session, Text: text}, func(r Reply) {
		h.replies = append(h.replies, r)
	})
}

func (h *harness) last() Reply {
	if len(h.replies) == 0 {
		return Reply{}
	}
	return h.replies[len(h.replies)-1]
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args string
		ok   bool
	}{
		{"/top5", "top5", "", true},
		{"  /战队信息  Natus Vincere ", "战队信息", "Natus Vincere", true},
		{"/", "", "", false},
		{"hello", "", "", false},
		{"1", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := parseCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&topTeamsCommand{}))

	err := r.Register(&topTeamsCommand{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Len(t, r.Commands(), 1)

	assert.Error(t, r.Register(nil))
}

func TestRegistry_LookupByAlias(t *testing.T) {
	h := newHarness(t)

	cmd, ok := h.bot.Registry().Lookup("TOP5")
	require.True(t, ok)
	assert.Equal(t, "top5战队", cmd.Name())

	_, ok = h.bot.Registry().Lookup("nope")
	assert.False(t, ok)
}

func TestHandle_IgnoresUnrelatedTraffic(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.send("u1", "gg wp"))
	assert.False(t, h.send("u1", "/unknown"))
	assert.False(t, h.send("u1", "1"))
	assert.Empty(t, h.replies)
}

func TestHelpListsCommands(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/hltv_help"))
	require.Len(t, h.replies, 1)
	text := h.replies[0].Text
	for _, name := range []string{"/top5战队", "/战队信息", "/近期比赛", "/比赛结果", "/top选手", "/搜索选手", "/选手详情"} {
		assert.Contains(t, text, name)
	}
}

func TestTopTeams(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/top5"))
	text := h.last().Text
	assert.Contains(t, text, "🥇 #1 Vitality")
	assert.Contains(t, text, "MOUZ")
	assert.Contains(t, text, "📊 积分:")
}

func TestMatches(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/近期比赛"))
	text := h.last().Text
	assert.Contains(t, text, "📆 2024-06-03:")
	assert.Contains(t, text, "⚔️ FaZe vs G2")
	assert.Contains(t, text, "⏰ TBA")
	assert.Contains(t, text, "💡 仅显示最近 3 场比赛")
}

func TestTopPlayers(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/topplayers"))
	text := h.last().Text
	assert.Contains(t, text, "🥇 #1 ZywOo")
	assert.Contains(t, text, "Mathieu Herbaut | 🌍 France")
}

func TestResultsThenLetterCapturesMatch(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/比赛结果"))
	text := h.last().Text
	assert.Contains(t, text, "📍 比赛 a")
	assert.Contains(t, text, "📍 比赛 b")
	assert.Contains(t, text, "a-b")

	require.True(t, h.send("u1", "A"))
	require.Len(t, h.fetcher.captures, 1)
	req := h.fetcher.captures[0]
	assert.Equal(t, "https://www.hltv.org/matches/2371000/vitality-vs-mouz", req.URL)
	assert.Equal(t, "match", req.Purpose)
	assert.Equal(t, "2371000", req.EntityID)

	require.Len(t, h.composer.calls, 1)
	assert.Equal(t, hltv.MatchPlan.Width, h.composer.calls[0].width)
	assert.True(t, strings.HasPrefix(h.composer.calls[0].name, "match_2371000_"))

	final := h.last()
	assert.NotEmpty(t, final.ImagePath)
	assert.Contains(t, final.Text, "Vitality 2 - 1 MOUZ")

	// The listing was consumed
	assert.False(t, h.send("u1", "b"))
}

func TestSearchThenDigitCapturesPlayer(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/搜索选手 s1mple"))
	text := h.last().Text
	assert.Contains(t, text, "#1 s1mple")
	assert.Contains(t, text, "🆔 ID: 7998")
	assert.Contains(t, text, "(1-2)")

	// Another session's token does not see u1's listing
	assert.False(t, h.send("u2", "1"))

	require.True(t, h.send("u1", "1"))
	require.Len(t, h.fetcher.captures, 1)
	assert.Equal(t, "https://www.hltv.org/stats/players/7998/s1mple", h.fetcher.captures[0].URL)
	assert.Equal(t, "player", h.fetcher.captures[0].Purpose)
	assert.Equal(t, hltv.PlayerPlan.Width, h.composer.calls[0].width)
	assert.NotEmpty(t, h.last().ImagePath)
}

func TestFollowUpAfterWindowIsIgnored(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/search s1mple"))
	h.clock.Advance(31 * time.Second)

	assert.False(t, h.send("u1", "2"))
	assert.Empty(t, h.fetcher.captures)
}

func TestSearchWithoutQuery(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/search"))
	assert.Equal(t, "❌ 用法: /搜索选手 <选手名称>", h.last().Text)
	assert.Empty(t, h.fetcher.fetched)
}

func TestTeamInfo(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/战队信息 natus vincere"))
	require.Len(t, h.replies, 3)
	assert.Contains(t, h.replies[0].Text, "正在查询")
	assert.Contains(t, h.replies[1].Text, "🎮 Natus Vincere 战队信息")
	assert.Contains(t, h.replies[1].Text, "• K/D Ratio: 1.05")

	require.Len(t, h.fetcher.captures, 1)
	assert.Equal(t, "https://www.hltv.org/team/4608/natus-vincere", h.fetcher.captures[0].URL)
	assert.Equal(t, hltv.TeamPlan.Width, h.composer.calls[0].width)
	assert.NotEmpty(t, h.replies[2].ImagePath)
}

func TestTeamInfoUnknownTeam(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/team Nobody"))
	assert.Equal(t, "❌ 未找到战队 Nobody 的信息", h.last().Text)
	assert.Empty(t, h.fetcher.fetched)
}

func TestPlayerDetail(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/player 7998"))
	require.Len(t, h.fetcher.captures, 1)
	assert.Equal(t, "https://www.hltv.org/stats/players/7998/-", h.fetcher.captures[0].URL)
	assert.NotEmpty(t, h.last().ImagePath)

	require.True(t, h.send("u1", "/player abc"))
	assert.Equal(t, "❌ 用法: /选手详情 <选手ID>", h.last().Text)
}

func TestRepeatedCapturesGetDistinctNames(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.send("u1", "/player 7998"))
	require.True(t, h.send("u2", "/player 7998"))
	require.Len(t, h.composer.calls, 2)

	first, second := h.composer.calls[0].name, h.composer.calls[1].name
	assert.NotEqual(t, first, second)
	for _, name := range []string{first, second} {
		assert.True(t, strings.HasPrefix(name, "player_7998_"), name)
		parts := strings.Split(name, "_")
		require.Len(t, parts, 4, name)
		assert.Len(t, parts[3], 8, name)
	}
}

func TestFailuresBecomeShortMessages(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *harness)
		text   string
		expect string
	}{
		{
			name:   "navigation",
			setup:  func(h *harness) { h.fetcher.fetchErr = &fetch.NavigationError{URL: "x", Status: 403, Attempts: 1} },
			text:   "/top5",
			expect: "❌ 页面加载失败，请稍后重试",
		},
		{
			name:   "empty page",
			setup:  func(h *harness) { h.fetcher.fetchErr = fetch.ErrPageEmpty },
			text:   "/results",
			expect: "❌ 页面内容为空，请稍后重试",
		},
		{
			name:   "no regions",
			setup:  func(h *harness) { h.fetcher.captureErr = fmt.Errorf("%w: x", fetch.ErrNoRegionsCaptured) },
			text:   "/player 1",
			expect: "❌ 未能截取到相关数据，请稍后重试",
		},
		{
			name:   "composition",
			setup:  func(h *harness) { h.composer.err = imaging.ErrCompositionFailed },
			text:   "/player 1",
			expect: "❌ 图片合成失败，请稍后重试",
		},
		{
			name:   "timeout",
			setup:  func(h *harness) { h.fetcher.fetchErr = fmt.Errorf("wait: %w", context.DeadlineExceeded) },
			text:   "/matches",
			expect: "❌ 查询超时，请稍后重试",
		},
		{
			name:   "other",
			setup:  func(h *harness) { h.fetcher.fetchErr = errors.New("boom") },
			text:   "/topplayers",
			expect: "❌ 查询失败，请稍后重试",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)
			require.True(t, h.send("u1", tt.text))
			assert.Equal(t, tt.expect, h.last().Text)
		})
	}
}

func TestUserMessageCatalogEmpty(t *testing.T) {
	assert.Equal(t, "❌ 获取战队列表失败，请稍后重试", userMessage(catalog.ErrCatalogEmpty))
	assert.Equal(t, "❌ 未找到相关信息", userMessage(fmt.Errorf("x: %w", ErrNothingFound)))
}
