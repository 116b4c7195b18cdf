package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/hltvquery/pkg/hltv"
	"github.com/entrhq/hltvquery/pkg/selection"
)

var (
	heavyRule = strings.Repeat("═", 30)
	lightRule = strings.Repeat("─", 20)
)

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return "🏅"
	}
}

// helpCommand lists every registered command.
type helpCommand struct {
	registry *Registry
}

func (c *helpCommand) Name() string        { return "hltv_help" }
func (c *helpCommand) Aliases() []string   { return []string{"help"} }
func (c *helpCommand) Usage() string       { return "/hltv_help" }
func (c *helpCommand) Description() string { return "显示帮助菜单" }

func (c *helpCommand) Execute(_ context.Context, _ Request, reply ReplyFunc) error {
	var b strings.Builder
	b.WriteString("🎮 HLTV 查询帮助菜单 🎮\n" + heavyRule + "\n\n")
	for _, cmd := range c.registry.Commands() {
		if cmd == Command(c) {
			continue
		}
		fmt.Fprintf(&b, "📍 /%s\n", cmd.Name())
		fmt.Fprintf(&b, "  💡 说明: %s\n", cmd.Description())
		fmt.Fprintf(&b, "  📝 用法: %s\n\n", cmd.Usage())
	}
	b.WriteString("📌 提示：\n")
	b.WriteString("• 所有命令前都需要加'/'符号\n")
	b.WriteString("• 部分查询可能需要一定时间，请耐心等待\n")
	b.WriteString("• 数据来源于 HLTV.org")
	reply(Reply{Text: b.String()})
	return nil
}

// topTeamsCommand shows the head of the world ranking.
type topTeamsCommand struct {
	deps Deps
}

func (c *topTeamsCommand) Name() string        { return "top5战队" }
func (c *topTeamsCommand) Aliases() []string   { return []string{"top5"} }
func (c *topTeamsCommand) Usage() string       { return "/top5战队" }
func (c *topTeamsCommand) Description() string { return "查看世界排名前5的战队" }

func (c *topTeamsCommand) Execute(ctx context.Context, _ Request, reply ReplyFunc) error {
	doc, err := c.deps.Fetcher.FetchPage(ctx, c.deps.Site.RankingURL())
	if err != nil {
		return err
	}
	teams := c.deps.Site.TopTeams(doc, hltv.MaxRankedTeams)
	if len(teams) == 0 {
		return fmt.Errorf("ranking: %w", ErrNothingFound)
	}

	var b strings.Builder
	b.WriteString("🏆 HLTV 世界排名 TOP5\n" + heavyRule + "\n")
	for _, t := range teams {
		rank, _ := strconv.Atoi(t.Rank)
		fmt.Fprintf(&b, "\n%s #%s %s\n", medal(rank), t.Rank, t.Name)
		fmt.Fprintf(&b, "📊 积分: %s\n", t.Points)
		if len(t.Players) > 0 {
			fmt.Fprintf(&b, "👥 阵容: %s\n", strings.Join(t.Players, ", "))
		}
	}
	reply(Reply{Text: strings.TrimRight(b.String(), "\n")})
	return nil
}

// teamInfoCommand shows a team's overview and a composite of its team page.
type teamInfoCommand struct {
	deps Deps
}

func (c *teamInfoCommand) Name() string        { return "战队信息" }
func (c *teamInfoCommand) Aliases() []string   { return []string{"team"} }
func (c *teamInfoCommand) Usage() string       { return "/战队信息 <战队名称>" }
func (c *teamInfoCommand) Description() string { return "查看战队数据、阵容和荣誉" }

func (c *teamInfoCommand) Execute(ctx context.Context, req Request, reply ReplyFunc) error {
	name := req.Args
	if name == "" {
		return &usageError{usage: c.Usage()}
	}
	reply(Reply{Text: fmt.Sprintf("🔍 正在查询 %s 的信息，请稍候...", name)})

	team, found, err := c.deps.Teams.Find(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		reply(Reply{Text: fmt.Sprintf("❌ 未找到战队 %s 的信息", name)})
		return nil
	}

	doc, err := c.deps.Fetcher.FetchPage(ctx, c.deps.Site.TeamOverviewURL(team.ID))
	if err != nil {
		return err
	}
	overview, ok := c.deps.Site.TeamOverview(doc)
	if !ok {
		return fmt.Errorf("team %d overview: %w", team.ID, ErrNothingFound)
	}
	reply(Reply{Text: formatOverview(overview)})

	plan := hltv.TeamPlan
	path, err := capture(ctx, c.deps, plan, c.deps.Site.TeamURL(team.ID, team.Name), team.ID)
	if err != nil {
		return err
	}
	reply(Reply{Text: fmt.Sprintf("📊 %s 战队统计数据：", overview.Name), ImagePath: path})
	return nil
}

func formatOverview(o hltv.TeamOverview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 %s 战队信息\n%s\n\n", o.Name, heavyRule)
	if len(o.Stats) > 0 {
		b.WriteString("📊 战队数据:\n")
		for _, s := range o.Stats {
			fmt.Fprintf(&b, "• %s: %s\n", s.Title, s.Value)
		}
		b.WriteString("\n")
	}
	if len(o.Lineup) > 0 {
		b.WriteString("👥 当前阵容:\n")
		for i, p := range o.Lineup {
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, p.Nickname, p.Name)
			fmt.Fprintf(&b, "   📈 比赛场数: %s\n", p.MapsPlayed)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// matchesCommand lists upcoming matches grouped by day.
type matchesCommand struct {
	deps Deps
}

func (c *matchesCommand) Name() string        { return "近期比赛" }
func (c *matchesCommand) Aliases() []string   { return []string{"matches"} }
func (c *matchesCommand) Usage() string       { return "/近期比赛" }
func (c *matchesCommand) Description() string { return "查看即将进行的比赛" }

func (c *matchesCommand) Execute(ctx context.Context, _ Request, reply ReplyFunc) error {
	doc, err := c.deps.Fetcher.FetchPage(ctx, c.deps.Site.MatchesURL())
	if err != nil {
		return err
	}
	matches := c.deps.Site.UpcomingMatches(doc, hltv.MaxUpcomingMatches)
	if len(matches) == 0 {
		return fmt.Errorf("upcoming matches: %w", ErrNothingFound)
	}

	var b strings.Builder
	b.WriteString("📅 HLTV近期比赛\n" + heavyRule + "\n")
	day := ""
	for _, m := range matches {
		if m.Date != day {
			day = m.Date
			fmt.Fprintf(&b, "\n📆 %s:\n%s\n", day, lightRule)
		}
		fmt.Fprintf(&b, "⚔️ %s vs %s\n", m.Team1, m.Team2)
		fmt.Fprintf(&b, "⏰ %s\n", m.Time)
		fmt.Fprintf(&b, "🏆 %s\n", m.Event)
		b.WriteString(strings.Repeat("─", 15) + "\n")
	}
	fmt.Fprintf(&b, "\n💡 仅显示最近 %d 场比赛", len(matches))
	reply(Reply{Text: b.String()})
	return nil
}

// resultsCommand lists recent results and opens a follow-up window for
// letters a-e.
type resultsCommand struct {
	deps Deps
}

func (c *resultsCommand) Name() string        { return "比赛结果" }
func (c *resultsCommand) Aliases() []string   { return []string{"results"} }
func (c *resultsCommand) Usage() string       { return "/比赛结果" }
func (c *resultsCommand) Description() string { return "查看最近的比赛结果，回复字母查看详细数据" }

func (c *resultsCommand) Execute(ctx context.Context, req Request, reply ReplyFunc) error {
	doc, err := c.deps.Fetcher.FetchPage(ctx, c.deps.Site.ResultsURL())
	if err != nil {
		return err
	}
	results := c.deps.Site.Results(doc, hltv.MaxResults)
	if len(results) == 0 {
		return fmt.Errorf("results: %w", ErrNothingFound)
	}

	candidates := make([]selection.Candidate, len(results))
	for i, r := range results {
		candidates[i] = r
	}
	if err := c.deps.Selections.Register(req.SessionID, selection.MatchResult, candidates); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("📊 HLTV近期比赛结果\n" + heavyRule + "\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "📍 比赛 %s\n", selection.Label(selection.MatchResult, i))
		fmt.Fprintf(&b, "⚔️ %s vs %s\n", r.Team1, r.Team2)
		fmt.Fprintf(&b, "📈 比分: %s - %s\n", r.Score1, r.Score2)
		fmt.Fprintf(&b, "🏆 赛事: %s\n", r.Event)
		b.WriteString(lightRule + "\n")
	}
	fmt.Fprintf(&b, "\n💡 在30秒内输入字母(a-%s)可查看详细数据",
		selection.Label(selection.MatchResult, len(results)-1))
	reply(Reply{Text: b.String()})
	return nil
}

// topPlayersCommand shows the highlighted players of the stats page.
type topPlayersCommand struct {
	deps Deps
}

func (c *topPlayersCommand) Name() string        { return "top选手" }
func (c *topPlayersCommand) Aliases() []string   { return []string{"topplayers"} }
func (c *topPlayersCommand) Usage() string       { return "/top选手" }
func (c *topPlayersCommand) Description() string { return "查看当前评分最高的选手" }

func (c *topPlayersCommand) Execute(ctx context.Context, _ Request, reply ReplyFunc) error {
	doc, err := c.deps.Fetcher.FetchPage(ctx, c.deps.Site.StatsURL())
	if err != nil {
		return err
	}
	players := c.deps.Site.TopPlayers(doc, hltv.MaxTopPlayers)
	if len(players) == 0 {
		return fmt.Errorf("top players: %w", ErrNothingFound)
	}

	var b strings.Builder
	b.WriteString("🏆 HLTV TOP选手排名 🏆\n" + heavyRule + "\n\n")
	for i, p := range players {
		fmt.Fprintf(&b, "%s #%d %s\n", medal(i+1), i+1, p.Nickname)
		fmt.Fprintf(&b, "👤 %s | 🌍 %s\n", p.Name, p.Country)
		fmt.Fprintf(&b, "📊 评分: %s | 🗺️ 地图数: %s\n", p.Rating, p.MapsPlayed)
		b.WriteString(strings.Repeat("─", 25) + "\n")
	}
	reply(Reply{Text: strings.TrimRight(b.String(), "\n")})
	return nil
}

// searchPlayerCommand searches players by name and opens a follow-up
// window for digits 1-5.
type searchPlayerCommand struct {
	deps Deps
}

func (c *searchPlayerCommand) Name() string        { return "搜索选手" }
func (c *searchPlayerCommand) Aliases() []string   { return []string{"search"} }
func (c *searchPlayerCommand) Usage() string       { return "/搜索选手 <选手名称>" }
func (c *searchPlayerCommand) Description() string { return "按名称搜索选手，回复序号查看详细数据" }

func (c *searchPlayerCommand) Execute(ctx context.Context, req Request, reply ReplyFunc) error {
	query := req.Args
	if query == "" {
		return &usageError{usage: c.Usage()}
	}
	reply(Reply{Text: fmt.Sprintf("🔍 正在搜索选手: %s，请稍候...", query)})

	doc, err := c.deps.Fetcher.FetchPage(ctx, c.deps.Site.SearchURL(query))
	if err != nil {
		return err
	}
	hits := c.deps.Site.SearchPlayers(doc)
	if len(hits) == 0 {
		reply(Reply{Text: fmt.Sprintf("❌ 未找到包含 '%s' 的选手", query)})
		return nil
	}

	shown := hits
	if len(shown) > hltv.MaxSearchHits {
		shown = shown[:hltv.MaxSearchHits]
	}
	candidates := make([]selection.Candidate, len(shown))
	for i, h := range shown {
		candidates[i] = h
	}
	if err := c.deps.Selections.Register(req.SessionID, selection.PlayerSearch, candidates); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 选手搜索结果: %s\n%s\n\n", query, heavyRule)
	for i, h := range shown {
		fmt.Fprintf(&b, "#%s %s\n", selection.Label(selection.PlayerSearch, i), h.Nickname)
		fmt.Fprintf(&b, "🌍 国籍: %s\n", h.Country)
		fmt.Fprintf(&b, "🆔 ID: %d\n", h.ID)
		b.WriteString(lightRule + "\n")
	}
	if len(hits) > len(shown) {
		fmt.Fprintf(&b, "\n💡 找到更多结果，只显示前%d个匹配项", len(shown))
	}
	fmt.Fprintf(&b, "\n📌 在30秒内输入序号(1-%d)可查看选手详细数据", len(shown))
	reply(Reply{Text: b.String()})
	return nil
}

// playerDetailCommand captures a player's stats page by id.
type playerDetailCommand struct {
	deps Deps
}

func (c *playerDetailCommand) Name() string        { return "选手详情" }
func (c *playerDetailCommand) Aliases() []string   { return []string{"player"} }
func (c *playerDetailCommand) Usage() string       { return "/选手详情 <选手ID>" }
func (c *playerDetailCommand) Description() string { return "按ID查看选手详细数据" }

func (c *playerDetailCommand) Execute(ctx context.Context, req Request, reply ReplyFunc) error {
	id, err := strconv.Atoi(req.Args)
	if err != nil || id <= 0 {
		return &usageError{usage: c.Usage()}
	}
	return showPlayer(ctx, c.deps, id, "", c.deps.Site.PlayerStatsURL(id, ""), reply)
}

// showPlayer captures the stats page of one player.
func showPlayer(ctx context.Context, deps Deps, id int, nickname, url string, reply ReplyFunc) error {
	label := nickname
	if label == "" {
		label = "ID " + strconv.Itoa(id)
	}
	reply(Reply{Text: fmt.Sprintf("🔍 正在获取选手 %s 的详细数据，请稍候...", label)})

	path, err := capture(ctx, deps, hltv.PlayerPlan, url, id)
	if err != nil {
		return err
	}
	reply(Reply{Text: fmt.Sprintf("📊 %s 选手详细数据：", label), ImagePath: path})
	return nil
}

// showMatch captures the detail page of a finished match.
func showMatch(ctx context.Context, deps Deps, m hltv.MatchResult, reply ReplyFunc) error {
	reply(Reply{Text: "📊 正在获取比赛详细数据，请稍候..."})

	id, _ := hltv.IDFromURL(m.URL)
	path, err := capture(ctx, deps, hltv.MatchPlan, m.URL, id)
	if err != nil {
		return err
	}
	reply(Reply{
		Text:      fmt.Sprintf("📊 比赛详细数据：\n⚔️ %s %s - %s %s", m.Team1, m.Score1, m.Score2, m.Team2),
		ImagePath: path,
	})
	return nil
}

// capture screenshots the plan's regions of url and stacks them into one
// composite named after the plan and entity. The short uuid keeps two
// requests for the same entity in the same millisecond apart.
func capture(ctx context.Context, deps Deps, plan hltv.Plan, url string, entityID int) (string, error) {
	regions, err := deps.Fetcher.CapturePage(ctx, plan.Request(url, entityID))
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%d_%d_%s", plan.Purpose, entityID, time.Now().UnixMilli(), uuid.New().String()[:8])
	return deps.Composer.Compose(regions, plan.Width, name)
}
