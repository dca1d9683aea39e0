// Package raster implements pyramid.Raster on top of image.Image.
// Decoding supports JPEG, PNG, GIF, BMP, TIFF and WebP sources.
package raster

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/eak1mov/go-multires/pyramid"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedSource = errors.New("multires: unsupported source")

type config struct {
	Filter          imaging.ResampleFilter
	AutoOrientation bool
}

type Option func(*config)

// WithFilter sets the resampling filter used to derive coarser levels.
func WithFilter(filter imaging.ResampleFilter) Option {
	return func(c *config) { c.Filter = filter }
}

// WithAutoOrientation controls whether EXIF orientation is applied on decode.
func WithAutoOrientation(enabled bool) Option {
	return func(c *config) { c.AutoOrientation = enabled }
}

func newConfig(opts []Option) config {
	c := config{Filter: imaging.Lanczos, AutoOrientation: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Image is a decoded raster.
type Image struct {
	img    image.Image
	filter imaging.ResampleFilter
}

var _ pyramid.Raster = (*Image)(nil)

// New wraps an already decoded image.
func New(img image.Image, opts ...Option) *Image {
	return &Image{img: img, filter: newConfig(opts).Filter}
}

// Open decodes the image file at path.
// Failures to open the file are returned as is, failures to parse it
// wrap ErrUnsupportedSource.
func Open(path string, opts ...Option) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return img, nil
}

func Decode(r io.Reader, opts ...Option) (*Image, error) {
	c := newConfig(opts)
	img, err := imaging.Decode(r, imaging.AutoOrientation(c.AutoOrientation))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedSource, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedSource)
	}
	return &Image{img: img, filter: c.Filter}, nil
}

// Image returns the underlying image.
func (i *Image) Image() image.Image {
	return i.img
}

func (i *Image) Size() (int, int) {
	b := i.img.Bounds()
	return b.Dx(), b.Dy()
}

func (i *Image) Resample(width, height int) (pyramid.Raster, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("invalid resample size %dx%d", width, height)
	}
	return &Image{img: imaging.Resize(i.img, width, height, i.filter), filter: i.filter}, nil
}

// Crop returns a copy of the given rectangle. Coordinates are relative
// to the top-left corner of the image.
func (i *Image) Crop(x, y, width, height int) (pyramid.Raster, error) {
	bounds := i.img.Bounds()
	rect := image.Rect(x, y, x+width, y+height).Add(bounds.Min)
	if rect.Empty() || !rect.In(bounds) {
		return nil, fmt.Errorf("crop rectangle %v outside of %v", rect, bounds)
	}
	return &Image{img: imaging.Crop(i.img, rect), filter: i.filter}, nil
}

var filters = map[string]imaging.ResampleFilter{
	"nearest":    imaging.NearestNeighbor,
	"box":        imaging.Box,
	"linear":     imaging.Linear,
	"hermite":    imaging.Hermite,
	"mitchell":   imaging.MitchellNetravali,
	"catmullrom": imaging.CatmullRom,
	"bspline":    imaging.BSpline,
	"gaussian":   imaging.Gaussian,
	"bartlett":   imaging.Bartlett,
	"lanczos":    imaging.Lanczos,
	"hann":       imaging.Hann,
	"hamming":    imaging.Hamming,
	"blackman":   imaging.Blackman,
	"welch":      imaging.Welch,
	"cosine":     imaging.Cosine,
}

// ParseFilter returns the resampling filter with the given name (e.g. "lanczos").
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	filter, ok := filters[strings.ToLower(name)]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("%w: unknown filter %q", pyramid.ErrInvalidConfiguration, name)
	}
	return filter, nil
}
