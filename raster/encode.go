package raster

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/eak1mov/go-multires/pyramid"
)

type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
)

const DefaultQuality = 75

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the tile file extension without the leading dot.
func (f Format) Extension() string {
	if f == FormatPNG {
		return "png"
	}
	return "jpg"
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	}
	return 0, fmt.Errorf("%w: unknown tile format %q", pyramid.ErrInvalidConfiguration, s)
}

var compressionLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"fast":    png.BestSpeed,
	"best":    png.BestCompression,
}

// ParseCompression returns the PNG compression level with the given name:
// default, none, fast or best.
func ParseCompression(name string) (png.CompressionLevel, error) {
	level, ok := compressionLevels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown png compression %q", pyramid.ErrInvalidConfiguration, name)
	}
	return level, nil
}

type encoderConfig struct {
	Quality     int
	Compression png.CompressionLevel
}

type EncoderOption func(*encoderConfig)

// WithQuality sets the JPEG quality, 1 to 100.
func WithQuality(quality int) EncoderOption {
	return func(c *encoderConfig) { c.Quality = quality }
}

// WithCompression sets the PNG compression level.
func WithCompression(level png.CompressionLevel) EncoderOption {
	return func(c *encoderConfig) { c.Compression = level }
}

// Encoder implements pyramid.Encoder for rasters created by this package.
type Encoder struct {
	format  Format
	options []imaging.EncodeOption
}

var _ pyramid.Encoder = (*Encoder)(nil)

func NewEncoder(format Format, opts ...EncoderOption) (*Encoder, error) {
	c := encoderConfig{Quality: DefaultQuality, Compression: png.DefaultCompression}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return nil, fmt.Errorf("%w: jpeg quality %d", pyramid.ErrInvalidConfiguration, c.Quality)
	}

	e := &Encoder{format: format}
	switch format {
	case FormatJPEG:
		e.options = []imaging.EncodeOption{imaging.JPEGQuality(c.Quality)}
	case FormatPNG:
		e.options = []imaging.EncodeOption{imaging.PNGCompressionLevel(c.Compression)}
	default:
		return nil, fmt.Errorf("%w: %v", pyramid.ErrInvalidConfiguration, format)
	}
	return e, nil
}

func (e *Encoder) Format() Format {
	return e.format
}

func (e *Encoder) Encode(r pyramid.Raster) ([]byte, error) {
	img, ok := r.(*Image)
	if !ok {
		return nil, fmt.Errorf("unsupported raster type %T", r)
	}
	format := imaging.JPEG
	if e.format == FormatPNG {
		format = imaging.PNG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img.img, format, e.options...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
