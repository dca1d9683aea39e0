// Package spec implements the binary layout of PMTiles v3 archives:
// header, directories, internal compression and tile ids.
package spec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

type Compression uint8

const (
	CompressionUnknown Compression = iota
	CompressionNone
	CompressionGzip
	CompressionBrotli
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionBrotli:
		return "brotli"
	case CompressionZstd:
		return "zstd"
	}
	return "unknown"
}

type TileType uint8

const (
	TileTypeUnknown TileType = iota
	TileTypeMvt
	TileTypePng
	TileTypeJpeg
	TileTypeWebp
	TileTypeAvif
)

// TileTypeForExtension maps a tile file extension (e.g. "jpg") to its tile type.
func TileTypeForExtension(ext string) TileType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return TileTypePng
	case "jpg", "jpeg":
		return TileTypeJpeg
	case "webp":
		return TileTypeWebp
	case "avif":
		return TileTypeAvif
	case "mvt", "pbf":
		return TileTypeMvt
	}
	return TileTypeUnknown
}

// Extension is the inverse of TileTypeForExtension.
func (t TileType) Extension() string {
	switch t {
	case TileTypePng:
		return "png"
	case TileTypeJpeg:
		return "jpg"
	case TileTypeWebp:
		return "webp"
	case TileTypeAvif:
		return "avif"
	case TileTypeMvt:
		return "mvt"
	}
	return ""
}

// Header is the fixed-size archive header, fields in on-disk order.
type Header struct {
	HeaderMagic         uint64
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

const (
	headerMagic     uint64 = 0x73656C69544D50 // "PMTiles"
	headerMagicMask uint64 = 1<<56 - 1
	HeaderMagicV3   uint64 = headerMagic | (0x03 << 56)

	HeaderLength = 127

	// The root directory must be contained in the first 16 KiB of the archive.
	HeaderRootDirMaxLength = 16 << 10
	RootDirOffset          = HeaderLength
	RootDirMaxLength       = HeaderRootDirMaxLength - HeaderLength
)

var (
	ErrInvalidHeader  = errors.New("multires: invalid pmtiles header")
	ErrInvalidVersion = errors.New("multires: unsupported pmtiles version")
)

func SerializeHeader(header *Header) []byte {
	buffer := bytes.NewBuffer(make([]byte, 0, HeaderLength))
	binary.Write(buffer, binary.LittleEndian, header)
	return buffer.Bytes()
}

func DeserializeHeader(data []byte) (*Header, error) {
	header := Header{}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if header.HeaderMagic&headerMagicMask != headerMagic {
		return nil, ErrInvalidHeader
	}
	if header.HeaderMagic != HeaderMagicV3 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, header.HeaderMagic>>56)
	}
	return &header, nil
}
