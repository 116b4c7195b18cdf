package hltv

// RankedTeam is one entry of the world ranking.
type RankedTeam struct {
	Rank    string
	Name    string
	Points  string
	Players []string
}

// UpcomingMatch is one scheduled match.
type UpcomingMatch struct {
	Date  string
	Team1 string
	Team2 string
	Time  string
	Event string
}

// MatchResult is one finished match with a link to its detail page.
type MatchResult struct {
	Team1  string
	Team2  string
	Score1 string
	Score2 string
	Event  string
	URL    string
}

// Player is an entry of the top players list.
type Player struct {
	ID         int
	Nickname   string
	Name       string
	Country    string
	Rating     string
	MapsPlayed string
	URL        string
}

// SearchHit is a player found by name search. URL points at the player's
// stats page.
type SearchHit struct {
	ID       int
	Nickname string
	Country  string
	URL      string
}

// TeamStat is a headline figure from a team's overview page.
type TeamStat struct {
	Title string
	Value string
}

// Teammate is a member of a team's current lineup.
type Teammate struct {
	Nickname   string
	Name       string
	MapsPlayed string
}

// TeamOverview is the text part of a team's info.
type TeamOverview struct {
	Name   string
	Stats  []TeamStat
	Lineup []Teammate
}
