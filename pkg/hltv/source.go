package hltv

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/hltvquery/pkg/catalog"
)

// DocumentFetcher loads a page as a parsed document. *fetch.Fetcher
// satisfies it.
type DocumentFetcher interface {
	FetchPage(ctx context.Context, url string) (*goquery.Document, error)
}

// Source fetches the full team list for the catalog.
type Source struct {
	site    *Site
	fetcher DocumentFetcher
}

// NewSource returns a catalog.TeamSource reading from site.
func NewSource(site *Site, fetcher DocumentFetcher) *Source {
	return &Source{site: site, fetcher: fetcher}
}

var _ catalog.TeamSource = (*Source)(nil)

// FetchTeams implements catalog.TeamSource.
func (s *Source) FetchTeams(ctx context.Context) ([]catalog.TeamRecord, error) {
	doc, err := s.fetcher.FetchPage(ctx, s.site.TeamListURL())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch team list: %w", err)
	}
	teams := s.site.Teams(doc)
	s.site.log.Infof("team list page yielded %d teams", len(teams))
	return teams, nil
}
