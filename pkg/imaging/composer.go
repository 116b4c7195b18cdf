// Package imaging stacks region screenshots into a single composite PNG.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/entrhq/hltvquery/pkg/logging"
)

// ErrCompositionFailed is returned when no region could be decoded and
// scaled, or when the target width is not positive.
var ErrCompositionFailed = errors.New("composition failed")

// RegionCapture is an ephemeral screenshot of one page region. It is
// consumed exactly once by Compose, which deletes the file.
type RegionCapture struct {
	// Name is the region's label, used in logs
	Name string

	// Path is the PNG file on disk
	Path string

	// NominalHeight is the height the region usually renders at, in pixels
	NominalHeight int
}

// Composer writes composites into Dir.
type Composer struct {
	Dir string
	log *logging.Logger
}

// NewComposer returns a composer that writes into dir. A nil logger discards output.
func NewComposer(dir string, log *logging.Logger) *Composer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Composer{Dir: dir, log: log}
}

// ScaledHeight returns h rescaled so that width w becomes targetWidth,
// preserving aspect ratio.
func ScaledHeight(w, h, targetWidth int) int {
	if w <= 0 {
		return 0
	}
	return int(math.Round(float64(h) * float64(targetWidth) / float64(w)))
}

// Measure returns the dimensions Compose would produce for regions without
// decoding pixel data or writing anything. Unreadable regions are left out,
// as Compose leaves them out.
func Measure(regions []RegionCapture, targetWidth int) (image.Point, error) {
	if targetWidth <= 0 {
		return image.Point{}, fmt.Errorf("%w: target width %d", ErrCompositionFailed, targetWidth)
	}

	size := image.Point{X: targetWidth}
	usable := 0
	for _, r := range regions {
		cfg, err := decodeConfig(r.Path)
		if err != nil || cfg.Width <= 0 {
			continue
		}
		size.Y += ScaledHeight(cfg.Width, cfg.Height, targetWidth)
		usable++
	}
	if usable == 0 {
		return image.Point{}, fmt.Errorf("%w: no usable regions", ErrCompositionFailed)
	}
	return size, nil
}

// Compose rescales every region to targetWidth, stacks them top to bottom
// in input order on a white canvas and writes the canvas once to
// <Dir>/<name>_merged.png. Every source file is deleted afterwards whether
// or not it could be used. Regions that cannot be decoded are skipped.
func (c *Composer) Compose(regions []RegionCapture, targetWidth int, name string) (string, error) {
	defer c.removeSources(regions)

	if targetWidth <= 0 {
		return "", fmt.Errorf("%w: target width %d", ErrCompositionFailed, targetWidth)
	}

	type scaled struct {
		src    image.Image
		height int
	}

	var (
		parts   []scaled
		total   int
		nominal int
	)
	for _, r := range regions {
		src, err := decode(r.Path)
		if err != nil {
			c.log.Warnf("skipping region %s: %v", r.Name, err)
			continue
		}
		b := src.Bounds()
		h := ScaledHeight(b.Dx(), b.Dy(), targetWidth)
		if h <= 0 {
			c.log.Warnf("skipping region %s: empty image", r.Name)
			continue
		}
		parts = append(parts, scaled{src: src, height: h})
		total += h
		nominal += r.NominalHeight
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: none of %d regions could be read", ErrCompositionFailed, len(regions))
	}

	c.log.Debugf("composing %d regions into %dx%d (nominal height %d)", len(parts), targetWidth, total, nominal)

	canvas := image.NewRGBA(image.Rect(0, 0, targetWidth, total))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	offset := 0
	for _, p := range parts {
		dst := image.Rect(0, offset, targetWidth, offset+p.height).Intersect(canvas.Bounds())
		draw.CatmullRom.Scale(canvas, dst, p.src, p.src.Bounds(), draw.Over, nil)
		offset += p.height
	}

	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompositionFailed, err)
	}
	path := filepath.Join(c.Dir, name+"_merged.png")
	if err := writePNG(path, canvas); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrCompositionFailed, err)
	}

	c.log.Infof("composite written to %s", path)
	return path, nil
}

func (c *Composer) removeSources(regions []RegionCapture) {
	for _, r := range regions {
		if err := os.Remove(r.Path); err != nil && !os.IsNotExist(err) {
			c.log.Warnf("failed to delete region file %s: %v", r.Path, err)
		}
	}
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func decodeConfig(path string) (image.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, err
	}
	defer f.Close()
	return png.DecodeConfig(f)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
