package main

import (
	"fmt"

	"github.com/entrhq/hltvquery/pkg/bot"
	"github.com/entrhq/hltvquery/pkg/browser"
	"github.com/entrhq/hltvquery/pkg/catalog"
	"github.com/entrhq/hltvquery/pkg/config"
	"github.com/entrhq/hltvquery/pkg/fetch"
	"github.com/entrhq/hltvquery/pkg/hltv"
	"github.com/entrhq/hltvquery/pkg/imaging"
	"github.com/entrhq/hltvquery/pkg/logging"
	"github.com/entrhq/hltvquery/pkg/selection"
)

// app holds the wired components shared by the subcommands.
type app struct {
	browsers   *browser.Manager
	fetcher    *fetch.Fetcher
	composer   *imaging.Composer
	selections *selection.Registry
	site       *hltv.Site
	catalog    *catalog.Catalog
	log        *logging.Logger
}

// newApp starts the browser driver and wires every component from cfg.
// The caller must call close.
func newApp(cfg *config.Config, log *logging.Logger) (*app, error) {
	browsers := browser.NewManager(
		browser.WithMaxSessions(cfg.Browser.MaxSessions),
		browser.WithInstall(cfg.Browser.InstallBrowsers),
		browser.WithLogger(log.Named("browser")),
	)
	if err := browsers.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to start browser driver: %w", err)
	}

	fetchLog := log.Named("fetch")
	fetcher := fetch.New(browsers, fetch.OptionsFromConfig(cfg),
		fetch.WithLogger(fetchLog),
		fetch.WithObserver(func(t fetch.Transition) {
			if t.Err != nil {
				fetchLog.Debugf("%s %s: %s (attempt %d, status %d): %v", t.Mode, t.URL, t.State, t.Attempt, t.Status, t.Err)
				return
			}
			fetchLog.Debugf("%s %s: %s (attempt %d)", t.Mode, t.URL, t.State, t.Attempt)
		}),
	)

	site := hltv.NewSite(cfg.Site.BaseURL, log.Named("site"))

	return &app{
		browsers: browsers,
		fetcher:  fetcher,
		composer: imaging.NewComposer(cfg.Capture.ScreenshotDir, log.Named("imaging")),
		selections: selection.NewRegistry(
			selection.WithTTL(cfg.Selection.TTL),
			selection.WithLogger(log.Named("selection")),
		),
		site:    site,
		catalog: catalog.New(cfg.Catalog.TeamsFile, hltv.NewSource(site, fetcher), log.Named("catalog")),
		log:     log,
	}, nil
}

func (a *app) bot() (*bot.Bot, error) {
	return bot.New(bot.Deps{
		Site:       a.site,
		Fetcher:    a.fetcher,
		Composer:   a.composer,
		Teams:      a.catalog,
		Selections: a.selections,
		Logger:     a.log.Named("bot"),
	})
}

func (a *app) close() {
	if err := a.browsers.Shutdown(); err != nil {
		a.log.Warnf("browser driver shutdown: %v", err)
	}
}
