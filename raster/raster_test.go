package raster_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/eak1mov/go-multires/pyramid"
	"github.com/eak1mov/go-multires/raster"
	"github.com/stretchr/testify/require"
)

func randomImage(width, height int) *image.NRGBA {
	rng := rand.New(rand.NewPCG(1, uint64(width*height)))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	return img
}

func TestCropReassemble(t *testing.T) {
	src := randomImage(300, 200)
	r := raster.New(src)

	for _, tileSize := range []int{64, 100, 512} {
		dst := image.NewNRGBA(src.Bounds())
		grid := pyramid.BuildGrid(1, 300, 200, tileSize)
		for _, tile := range grid.Tiles {
			cropped, err := r.Crop(tile.X, tile.Y, tile.W, tile.H)
			require.NoError(t, err)

			w, h := cropped.Size()
			require.Equal(t, tile.W, w)
			require.Equal(t, tile.H, h)

			img := cropped.(*raster.Image).Image().(*image.NRGBA)
			for y := range tile.H {
				row := img.Pix[y*img.Stride : y*img.Stride+tile.W*4]
				copy(dst.Pix[dst.PixOffset(tile.X, tile.Y+y):], row)
			}
		}
		require.True(t, bytes.Equal(src.Pix, dst.Pix), "tile size %d: reassembled image differs", tileSize)
	}
}

func TestCropSubImage(t *testing.T) {
	src := randomImage(64, 64)
	sub := src.SubImage(image.Rect(10, 20, 50, 60))
	r := raster.New(sub)

	w, h := r.Size()
	require.Equal(t, 40, w)
	require.Equal(t, 40, h)

	cropped, err := r.Crop(0, 0, 1, 1)
	require.NoError(t, err)
	got := cropped.(*raster.Image).Image().(*image.NRGBA)
	require.Equal(t, src.NRGBAAt(10, 20), got.NRGBAAt(0, 0))
}

func TestCropOutOfBounds(t *testing.T) {
	r := raster.New(randomImage(100, 50))
	for _, rect := range [][4]int{
		{-1, 0, 10, 10},
		{0, 0, 101, 10},
		{95, 45, 10, 10},
		{0, 0, 0, 10},
	} {
		_, err := r.Crop(rect[0], rect[1], rect[2], rect[3])
		require.Error(t, err, "%v", rect)
	}
}

func TestResample(t *testing.T) {
	r := raster.New(randomImage(2000, 1000), raster.WithFilter(imaging.Box))

	half, err := r.Resample(1000, 500)
	require.NoError(t, err)
	w, h := half.Size()
	require.Equal(t, 1000, w)
	require.Equal(t, 500, h)

	quarter, err := half.Resample(500, 250)
	require.NoError(t, err)
	w, h = quarter.Size()
	require.Equal(t, 500, w)
	require.Equal(t, 250, h)

	_, err = r.Resample(0, 10)
	require.Error(t, err)
}

func TestResampleUniform(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	draw.Draw(src, src.Bounds(), image.NewUniform(color.NRGBA{R: 200, G: 100, B: 50, A: 255}), image.Point{}, draw.Src)

	small, err := raster.New(src).Resample(16, 8)
	require.NoError(t, err)
	img := small.(*raster.Image).Image()
	require.Equal(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}, color.NRGBAModel.Convert(img.At(5, 5)))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.png")
	require.NoError(t, imaging.Save(randomImage(123, 45), path))

	r, err := raster.Open(path)
	require.NoError(t, err)
	w, h := r.Size()
	require.Equal(t, 123, w)
	require.Equal(t, 45, h)
}

func TestOpenUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not an image"), 0644))

	_, err := raster.Open(path)
	require.True(t, errors.Is(err, raster.ErrUnsupportedSource), "%v", err)
}

func TestOpenMissing(t *testing.T) {
	_, err := raster.Open(filepath.Join(t.TempDir(), "missing.png"))
	require.True(t, errors.Is(err, fs.ErrNotExist), "%v", err)
	require.False(t, errors.Is(err, raster.ErrUnsupportedSource))
}

func TestParseFilter(t *testing.T) {
	_, err := raster.ParseFilter("Lanczos")
	require.NoError(t, err)

	_, err = raster.ParseFilter("sinc")
	require.True(t, errors.Is(err, pyramid.ErrInvalidConfiguration), "%v", err)
}

// withOrientation inserts an EXIF APP1 segment with the given orientation
// tag right after the SOI marker of a JPEG stream.
func withOrientation(t *testing.T, jpegData []byte, orientation uint16) []byte {
	t.Helper()
	require.True(t, bytes.HasPrefix(jpegData, []byte{0xFF, 0xD8}))

	var exif bytes.Buffer
	exif.WriteString("Exif\x00\x00")
	exif.WriteString("MM\x00\x2A")
	binary.Write(&exif, binary.BigEndian, uint32(8))      // IFD offset
	binary.Write(&exif, binary.BigEndian, uint16(1))      // number of tags
	binary.Write(&exif, binary.BigEndian, uint16(0x0112)) // orientation
	binary.Write(&exif, binary.BigEndian, uint16(3))      // SHORT
	binary.Write(&exif, binary.BigEndian, uint32(1))
	binary.Write(&exif, binary.BigEndian, orientation)
	binary.Write(&exif, binary.BigEndian, uint16(0))
	binary.Write(&exif, binary.BigEndian, uint32(0)) // next IFD

	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(exif.Len()+2))
	out.Write(exif.Bytes())
	out.Write(jpegData[2:])
	return out.Bytes()
}

func TestDecodeAutoOrientation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, randomImage(64, 32), nil))
	// Orientation 6: stored image must be rotated 90 degrees clockwise.
	data := withOrientation(t, buf.Bytes(), 6)

	for _, tc := range []struct {
		name          string
		opts          []raster.Option
		width, height int
	}{
		{name: "Default", width: 32, height: 64},
		{name: "Disabled", opts: []raster.Option{raster.WithAutoOrientation(false)}, width: 64, height: 32},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := raster.Decode(bytes.NewReader(data), tc.opts...)
			require.NoError(t, err)
			w, h := r.Size()
			require.Equal(t, tc.width, w)
			require.Equal(t, tc.height, h)
		})
	}
}
