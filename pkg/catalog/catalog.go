// Package catalog keeps the list of known teams, read from a local cache
// file or, when the cache is missing or empty, fetched from the site and
// written back.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/entrhq/hltvquery/pkg/logging"
)

// ErrCatalogEmpty is returned when neither the cache nor the site yields
// any team.
var ErrCatalogEmpty = errors.New("team catalog is empty")

// TeamRecord is one known team.
type TeamRecord struct {
	ID   int
	Name string
	URL  string
}

// TeamSource fetches the full team list from the site.
type TeamSource interface {
	FetchTeams(ctx context.Context) ([]TeamRecord, error)
}

// Catalog loads teams at most once per process. Concurrent first callers
// share a single load.
type Catalog struct {
	path   string
	source TeamSource
	log    *logging.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	teams  []TeamRecord
	loaded bool
}

// New returns a catalog backed by the cache file at path.
func New(path string, source TeamSource, log *logging.Logger) *Catalog {
	if log == nil {
		log = logging.NewNop()
	}
	return &Catalog{path: path, source: source, log: log}
}

// Teams returns every known team.
func (c *Catalog) Teams(ctx context.Context) ([]TeamRecord, error) {
	c.mu.RLock()
	if c.loaded {
		teams := c.teams
		c.mu.RUnlock()
		return teams, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("teams", func() (interface{}, error) {
		return c.load(ctx, false)
	})
	if err != nil {
		return nil, err
	}
	return v.([]TeamRecord), nil
}

// Refresh ignores the cache, fetches the list from the site and rewrites
// the cache file.
func (c *Catalog) Refresh(ctx context.Context) ([]TeamRecord, error) {
	v, err, _ := c.group.Do("teams", func() (interface{}, error) {
		return c.load(ctx, true)
	})
	if err != nil {
		return nil, err
	}
	return v.([]TeamRecord), nil
}

// Find returns the team whose name equals name, ignoring case.
func (c *Catalog) Find(ctx context.Context, name string) (TeamRecord, bool, error) {
	teams, err := c.Teams(ctx)
	if err != nil {
		return TeamRecord{}, false, err
	}
	name = strings.TrimSpace(name)
	for _, t := range teams {
		if strings.EqualFold(t.Name, name) {
			return t, true, nil
		}
	}
	return TeamRecord{}, false, nil
}

func (c *Catalog) load(ctx context.Context, refresh bool) ([]TeamRecord, error) {
	if !refresh {
		c.mu.RLock()
		if c.loaded {
			teams := c.teams
			c.mu.RUnlock()
			return teams, nil
		}
		c.mu.RUnlock()

		if teams := c.readCache(); len(teams) > 0 {
			c.store(teams)
			return teams, nil
		}
	}

	if c.source == nil {
		return nil, ErrCatalogEmpty
	}

	c.log.Infof("fetching team list from the site")
	teams, err := c.source.FetchTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogEmpty, err)
	}
	if len(teams) == 0 {
		return nil, ErrCatalogEmpty
	}

	if err := c.writeCache(teams); err != nil {
		c.log.Errorf("failed to write team cache %s: %v", c.path, err)
	} else {
		c.log.Infof("saved %d teams to %s", len(teams), c.path)
	}

	c.store(teams)
	return teams, nil
}

func (c *Catalog) store(teams []TeamRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teams = teams
	c.loaded = true
}

func (c *Catalog) readCache() []TeamRecord {
	f, err := os.Open(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Errorf("failed to open team cache %s: %v", c.path, err)
		}
		return nil
	}
	defer f.Close()

	teams, skipped := Decode(f, c.log)
	c.log.Infof("read %d teams from %s (%d lines skipped)", len(teams), c.path, skipped)
	return teams
}

// writeCache replaces the cache file through a temporary file so readers
// never see a partial list.
func (c *Catalog) writeCache(teams []TeamRecord) error {
	var buf bytes.Buffer
	if err := Encode(&buf, teams); err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename %s: %w", c.path, err)
	}
	return nil
}
