package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRegion(t *testing.T, dir, name string, w, h int, c color.Color) RegionCapture {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, name+".png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return RegionCapture{Name: name, Path: path, NominalHeight: h}
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestScaledHeight(t *testing.T) {
	tests := []struct {
		w, h, target int
		want         int
	}{
		{w: 100, h: 50, target: 50, want: 25},
		{w: 1000, h: 333, target: 664, want: 221},
		{w: 3, h: 1, target: 2, want: 1},
		{w: 648, h: 245, target: 648, want: 245},
		{w: 0, h: 10, target: 10, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScaledHeight(tt.w, tt.h, tt.target), "%dx%d -> %d", tt.w, tt.h, tt.target)
	}
}

func TestCompose_StacksInOrder(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	regions := []RegionCapture{
		writeRegion(t, src, "top", 100, 50, red),
		writeRegion(t, src, "bottom", 200, 60, blue),
	}

	size, err := Measure(regions, 50)
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: 50, Y: 40}, size)

	composer := NewComposer(out, nil)
	path, err := composer.Compose(regions, 50, "team_4608")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "team_4608_merged.png"), path)

	img := decodeFile(t, path)
	assert.Equal(t, size, img.Bounds().Size())

	r, _, b, _ := img.At(25, 12).RGBA()
	assert.Greater(t, r, b, "top band should be red")
	r, _, b, _ = img.At(25, 32).RGBA()
	assert.Greater(t, b, r, "bottom band should be blue")

	for _, region := range regions {
		assert.NoFileExists(t, region.Path)
	}
}

func TestCompose_SkipsUnreadableRegions(t *testing.T) {
	src := t.TempDir()
	good := writeRegion(t, src, "good", 664, 134, color.Black)
	bad := RegionCapture{Name: "bad", Path: filepath.Join(src, "bad.png"), NominalHeight: 187}
	require.NoError(t, os.WriteFile(bad.Path, []byte("not a png"), 0644))
	missing := RegionCapture{Name: "missing", Path: filepath.Join(src, "missing.png")}

	regions := []RegionCapture{good, bad, missing}
	size, err := Measure(regions, 664)
	require.NoError(t, err)
	assert.Equal(t, 134, size.Y)

	path, err := NewComposer(t.TempDir(), nil).Compose(regions, 664, "partial")
	require.NoError(t, err)
	assert.Equal(t, size, decodeFile(t, path).Bounds().Size())

	assert.NoFileExists(t, good.Path)
	assert.NoFileExists(t, bad.Path)
}

func TestCompose_NothingUsable(t *testing.T) {
	src := t.TempDir()
	bad := RegionCapture{Name: "bad", Path: filepath.Join(src, "bad.png")}
	require.NoError(t, os.WriteFile(bad.Path, []byte{0x89, 'P', 'N'}, 0644))

	out := t.TempDir()
	_, err := NewComposer(out, nil).Compose([]RegionCapture{bad}, 645, "match")
	assert.ErrorIs(t, err, ErrCompositionFailed)
	assert.NoFileExists(t, bad.Path)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = NewComposer(out, nil).Compose(nil, 645, "match")
	assert.ErrorIs(t, err, ErrCompositionFailed)
}

func TestCompose_RejectsNonPositiveWidth(t *testing.T) {
	src := t.TempDir()
	region := writeRegion(t, src, "r", 10, 10, color.White)

	_, err := NewComposer(t.TempDir(), nil).Compose([]RegionCapture{region}, 0, "zero")
	assert.ErrorIs(t, err, ErrCompositionFailed)
	assert.NoFileExists(t, region.Path)

	_, err = Measure([]RegionCapture{region}, -1)
	assert.ErrorIs(t, err, ErrCompositionFailed)
}

func TestCompose_DimensionsIndependentOfOrder(t *testing.T) {
	widths := []int{664, 648, 645}
	for _, target := range widths {
		src := t.TempDir()
		a := writeRegion(t, src, "a", 1280, 300, color.White)
		b := writeRegion(t, src, "b", 900, 217, color.White)
		c := writeRegion(t, src, "c", 333, 91, color.White)

		forward, err := Measure([]RegionCapture{a, b, c}, target)
		require.NoError(t, err)
		backward, err := Measure([]RegionCapture{c, b, a}, target)
		require.NoError(t, err)
		assert.Equal(t, forward, backward)

		want := ScaledHeight(1280, 300, target) + ScaledHeight(900, 217, target) + ScaledHeight(333, 91, target)
		assert.Equal(t, want, forward.Y)

		path, err := NewComposer(t.TempDir(), nil).Compose([]RegionCapture{a, b, c}, target, "dims")
		require.NoError(t, err)
		assert.Equal(t, forward, decodeFile(t, path).Bounds().Size())
	}
}
