package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/hltvquery/pkg/browser"
	"github.com/entrhq/hltvquery/pkg/imaging"
)

// regionWait bounds how long a region marked Wait may take to attach.
const regionWait = 10 * time.Second

// Region is one element to screenshot.
type Region struct {
	Name          string
	Selector      string
	NominalHeight int

	// Wait waits for the element to attach instead of checking once
	Wait bool
}

// CaptureRequest describes a capture of several regions of one page.
type CaptureRequest struct {
	URL      string
	Purpose  string // file name tag, e.g. "team"
	EntityID string
	Regions  []Region
}

// CapturePage navigates to req.URL, retrying transient failures, and
// screenshots every region that exists. Missing regions are skipped;
// ErrNoRegionsCaptured is returned only when none were found.
func (f *Fetcher) CapturePage(ctx context.Context, req CaptureRequest) ([]imaging.RegionCapture, error) {
	if err := os.MkdirAll(f.screenshotDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	var captures []imaging.RegionCapture
	err := f.sessions.WithSession(ctx, f.sessionOptions(ModeCapture), func(s *browser.Session) error {
		if err := f.navigate(ctx, s, req.URL, ModeCapture); err != nil {
			return err
		}
		f.cleanup(s)

		captures = f.captureRegions(ctx, s, req)
		if len(captures) == 0 {
			return fmt.Errorf("%w: %s", ErrNoRegionsCaptured, req.URL)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.log.Infof("captured %d/%d regions of %s", len(captures), len(req.Regions), req.URL)
	return captures, nil
}

func (f *Fetcher) captureRegions(ctx context.Context, s *browser.Session, req CaptureRequest) []imaging.RegionCapture {
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	suffix := uuid.New().String()[:8]

	var captures []imaging.RegionCapture
	for _, region := range req.Regions {
		if ctx.Err() != nil {
			break
		}

		name := fmt.Sprintf("%s_%s_%s_%s_%s.png", req.Purpose, req.EntityID, stamp, suffix, region.Name)
		path := filepath.Join(f.screenshotDir(), name)

		opts := browser.ScreenshotOptions{Selector: region.Selector, Path: path, Wait: region.Wait}
		if region.Wait {
			opts.Timeout = millis(regionWait)
		}

		ok, err := s.Screenshot(opts)
		if err != nil {
			f.log.Warnf("region %s (%s) skipped: %v", region.Name, region.Selector, err)
			_ = os.Remove(path)
			continue
		}
		if !ok {
			f.log.Warnf("region %s (%s) not found on %s", region.Name, region.Selector, req.URL)
			continue
		}

		captures = append(captures, imaging.RegionCapture{
			Name:          region.Name,
			Path:          path,
			NominalHeight: region.NominalHeight,
		})
	}
	return captures
}

func (f *Fetcher) screenshotDir() string {
	if f.opts.ScreenshotDir == "" {
		return "."
	}
	return f.opts.ScreenshotDir
}
