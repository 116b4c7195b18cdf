package hltv

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/hltvquery/pkg/catalog"
)

// Listing sizes shown in chat.
const (
	MaxRankedTeams     = 5
	MaxUpcomingMatches = 10
	MaxResults         = 5
	MaxTopPlayers      = 10
	MaxSearchHits      = 5
)

var digitsRe = regexp.MustCompile(`\d+`)

// TopTeams reads up to limit teams from the ranking page.
func (s *Site) TopTeams(doc *goquery.Document, limit int) []RankedTeam {
	var teams []RankedTeam
	doc.Find("div.ranking div.ranked-team.standard-box").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(teams) >= limit {
			return false
		}
		name := text(sel.Find(".ranking-header .name").First())
		rank := strings.TrimPrefix(text(sel.Find(".position").First()), "#")
		if name == "" || rank == "" {
			s.log.Warnf("ranked team without name or position, skipping")
			return true
		}

		team := RankedTeam{
			Rank:   rank,
			Name:   name,
			Points: text(sel.Find("span.points").First()),
		}
		sel.Find("td.player-holder img.playerPicture").Each(func(_ int, img *goquery.Selection) {
			if title, ok := img.Attr("title"); ok && title != "" {
				team.Players = append(team.Players, title)
			}
		})
		teams = append(teams, team)
		return true
	})
	return teams
}

// Teams reads the full team list page into catalog records.
func (s *Site) Teams(doc *goquery.Document) []catalog.TeamRecord {
	var teams []catalog.TeamRecord
	doc.Find("td.teamCol-teams-overview").Each(func(_ int, sel *goquery.Selection) {
		a := sel.Find("a").First()
		href, _ := a.Attr("href")
		id, ok := idFromHref(href)
		if !ok {
			s.log.Warnf("team link %q has no id, skipping", href)
			return
		}
		teams = append(teams, catalog.TeamRecord{
			ID:   id,
			Name: text(a),
			URL:  s.Absolute(href),
		})
	})
	return teams
}

// UpcomingMatches reads up to limit matches from the matches page, in page
// order across match days.
func (s *Site) UpcomingMatches(doc *goquery.Document, limit int) []UpcomingMatch {
	var matches []UpcomingMatch
	doc.Find("div.upcomingMatchesSection").EachWithBreak(func(_ int, day *goquery.Selection) bool {
		if len(matches) >= limit {
			return false
		}
		headline := strings.Fields(text(day.Find("div.matchDayHeadline").First()))
		if len(headline) == 0 {
			s.log.Warnf("match day without headline, skipping")
			return true
		}
		date := headline[len(headline)-1]

		day.Find("div.upcomingMatch").EachWithBreak(func(_ int, m *goquery.Selection) bool {
			if len(matches) >= limit {
				return false
			}
			teams := m.Find("div.matchTeam")
			if teams.Length() < 2 {
				return true
			}
			matches = append(matches, UpcomingMatch{
				Date:  date,
				Team1: text(teams.Eq(0)),
				Team2: text(teams.Eq(1)),
				Time:  textOr(m.Find("div.matchTime").First(), "TBA"),
				Event: textOr(m.Find("div.matchEvent").First(), "Unknown Event"),
			})
			return true
		})
		return true
	})
	return matches
}

// Results reads up to limit finished matches that link to a detail page.
func (s *Site) Results(doc *goquery.Document, limit int) []MatchResult {
	var results []MatchResult
	doc.Find("div.result-con").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		teams := sel.Find("td.team-cell")
		scores := sel.Find("td.result-score span")
		if teams.Length() < 2 || scores.Length() < 2 {
			return true
		}
		href, ok := sel.Find("a.a-reset").First().Attr("href")
		if !ok || href == "" {
			href, ok = sel.Closest("a.a-reset").Attr("href")
		}
		if !ok || href == "" {
			s.log.Warnf("result %s vs %s has no detail link, skipping", text(teams.Eq(0)), text(teams.Eq(1)))
			return true
		}
		results = append(results, MatchResult{
			Team1:  text(teams.Eq(0)),
			Team2:  text(teams.Eq(1)),
			Score1: text(scores.Eq(0)),
			Score2: text(scores.Eq(1)),
			Event:  textOr(sel.Find("td.event").First(), "Unknown Event"),
			URL:    s.Absolute(href),
		})
		return true
	})
	return results
}

// TopPlayers reads the highlighted players of the stats landing page.
func (s *Site) TopPlayers(doc *goquery.Document, limit int) []Player {
	var players []Player
	doc.Find("div.col").First().Find("div.top-x-box.standard-box").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(players) >= limit {
			return false
		}
		link := sel.Find("a.name").First()
		href, _ := link.Attr("href")
		id, ok := idFromHref(href)
		if !ok {
			s.log.Warnf("top player link %q has no id, skipping", href)
			return true
		}

		country, _ := sel.Find("img").Eq(1).Attr("alt")
		alt, _ := sel.Find("img.img").First().Attr("alt")
		players = append(players, Player{
			ID:         id,
			Nickname:   text(link),
			Name:       realName(alt),
			Country:    country,
			Rating:     text(sel.Find("div.rating span.bold").First()),
			MapsPlayed: text(sel.Find("div.average.gtSmartphone-only span.bold").First()),
			URL:        s.Absolute(href),
		})
		return true
	})
	return players
}

// SearchPlayers reads player hits from the search page. Team and event
// hits are ignored.
func (s *Site) SearchPlayers(doc *goquery.Document) []SearchHit {
	var hits []SearchHit
	doc.Find("div.widthControl").First().Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find("a").First().Attr("href")
		if !ok || !strings.HasPrefix(href, "/player/") {
			return
		}
		parts := strings.Split(strings.Trim(href, "/"), "/")
		if len(parts) != 3 {
			return
		}
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			s.log.Warnf("player link %q has no id, skipping", href)
			return
		}

		country := "Unknown"
		if alt, ok := row.Find("img.flag").First().Attr("alt"); ok && alt != "" {
			country = alt
		}
		hits = append(hits, SearchHit{
			ID:       id,
			Nickname: parts[2],
			Country:  country,
			URL:      s.PlayerStatsURL(id, parts[2]),
		})
	})
	return hits
}

// TeamOverview reads a team's name, headline stats and lineup.
func (s *Site) TeamOverview(doc *goquery.Document) (TeamOverview, bool) {
	name := text(doc.Find("div.context-item").First())
	if name == "" {
		return TeamOverview{}, false
	}

	overview := TeamOverview{Name: name}
	doc.Find("div.columns div.col.standard-box.big-padding").Each(func(_ int, sel *goquery.Selection) {
		value := text(sel.Find("div.large-strong").First())
		title := text(sel.Find("div.small-label-below").First())
		if title == "" {
			return
		}
		overview.Stats = append(overview.Stats, TeamStat{Title: title, Value: value})
	})

	doc.Find("div.col.teammate").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= 5 {
			return false
		}
		alt, _ := sel.Find("img.container-width").First().Attr("alt")
		overview.Lineup = append(overview.Lineup, Teammate{
			Nickname:   text(sel.Find("div.text-ellipsis").First()),
			Name:       realName(alt),
			MapsPlayed: digitsRe.FindString(sel.Find("div.teammate-info.standard-box span").First().Text()),
		})
		return true
	})
	return overview, true
}

// idFromHref returns the numeric path segment before the trailing slug,
// e.g. 9565 in /stats/teams/9565/vitality.
func idFromHref(href string) (int, bool) {
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) < 2 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, false
	}
	return id, true
}

// realName turns an image alt of the form First 'nick' Last into
// "First Last".
func realName(alt string) string {
	parts := strings.Split(alt, "'")
	if len(parts) < 3 {
		return strings.TrimSpace(alt)
	}
	return strings.TrimSpace(strings.TrimRight(parts[0], " ") + parts[2])
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func textOr(sel *goquery.Selection, fallback string) string {
	if t := text(sel); t != "" {
		return t
	}
	return fallback
}

// IDFromURL returns the numeric id in a site URL such as
// https://www.hltv.org/matches/2371000/vitality-vs-mouz.
func IDFromURL(u string) (int, bool) {
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
		if j := strings.Index(u, "/"); j >= 0 {
			u = u[j:]
		}
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return idFromHref(u)
}
