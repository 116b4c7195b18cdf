// Package hltv knows the statistics site's page layout: where pages live,
// how to read facts out of their DOM and which regions to screenshot.
package hltv

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/entrhq/hltvquery/pkg/logging"
)

// Site builds URLs against a base and extracts data from fetched pages.
type Site struct {
	base string
	log  *logging.Logger
}

// NewSite returns a Site rooted at base, e.g. https://www.hltv.org.
func NewSite(base string, log *logging.Logger) *Site {
	if log == nil {
		log = logging.NewNop()
	}
	return &Site{base: strings.TrimRight(base, "/"), log: log}
}

// Base returns the site root without a trailing slash.
func (s *Site) Base() string { return s.base }

func (s *Site) RankingURL() string { return s.base + "/ranking/teams/" }

// TeamListURL lists every team with at least zero maps played, which is
// every team the site tracks.
func (s *Site) TeamListURL() string { return s.base + "/stats/teams?minMapCount=0" }

func (s *Site) TeamOverviewURL(id int) string {
	return fmt.Sprintf("%s/?pageid=179&teamid=%d", s.base, id)
}

func (s *Site) TeamURL(id int, name string) string {
	return fmt.Sprintf("%s/team/%d/%s", s.base, id, Slug(name))
}

func (s *Site) MatchesURL() string { return s.base + "/matches/" }

func (s *Site) ResultsURL() string { return s.base + "/results/" }

func (s *Site) SearchURL(query string) string {
	return s.base + "/search?query=" + url.QueryEscape(query)
}

func (s *Site) StatsURL() string { return s.base + "/stats" }

func (s *Site) PlayerStatsURL(id int, nickname string) string {
	return fmt.Sprintf("%s/stats/players/%d/%s", s.base, id, Slug(nickname))
}

// Absolute resolves a site-relative href.
func (s *Site) Absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.base + href
}

// Slug lowercases name and joins its words with dashes, the way the site
// spells path segments. The site ignores the segment when routing, so an
// imperfect slug still resolves.
func Slug(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return "-"
	}
	return url.PathEscape(strings.Join(fields, "-"))
}
