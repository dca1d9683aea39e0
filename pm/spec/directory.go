package spec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Entry is a directory entry. RunLength 0 marks a pointer to a leaf directory.
type Entry struct {
	TileCode  uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

var ErrInvalidDirectory = errors.New("multires: invalid pmtiles directory")

// SerializeDirectory encodes entries sorted by TileCode, column by column.
func SerializeDirectory(entries []Entry) []byte {
	buffer := binary.AppendUvarint(nil, uint64(len(entries)))

	lastCode := uint64(0)
	for _, entry := range entries {
		buffer = binary.AppendUvarint(buffer, entry.TileCode-lastCode)
		lastCode = entry.TileCode
	}
	for _, entry := range entries {
		buffer = binary.AppendUvarint(buffer, uint64(entry.RunLength))
	}
	for _, entry := range entries {
		buffer = binary.AppendUvarint(buffer, uint64(entry.Length))
	}

	// Offsets contiguous with the previous entry are stored as 0.
	nextOffset := uint64(0)
	for i, entry := range entries {
		if i > 0 && entry.Offset == nextOffset {
			buffer = binary.AppendUvarint(buffer, 0)
		} else {
			buffer = binary.AppendUvarint(buffer, entry.Offset+1)
		}
		nextOffset = entry.Offset + uint64(entry.Length)
	}

	return buffer
}

type uvarintReader struct {
	r   *bytes.Reader
	err error
}

func (u *uvarintReader) next() uint64 {
	if u.err != nil {
		return 0
	}
	var value uint64
	value, u.err = binary.ReadUvarint(u.r)
	return value
}

func DeserializeDirectory(data []byte) ([]Entry, error) {
	u := uvarintReader{r: bytes.NewReader(data)}

	numEntries := u.next()
	// Every entry takes at least 4 bytes.
	if u.err != nil || numEntries > uint64(len(data))/4+1 {
		return nil, fmt.Errorf("%w: bad entry count", ErrInvalidDirectory)
	}
	entries := make([]Entry, numEntries)

	lastCode := uint64(0)
	for i := range entries {
		lastCode += u.next()
		entries[i].TileCode = lastCode
	}
	for i := range entries {
		entries[i].RunLength = uint32(u.next())
	}
	for i := range entries {
		entries[i].Length = uint32(u.next())
	}
	for i := range entries {
		value := u.next()
		if value == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = value - 1
		}
	}

	if u.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDirectory, u.err)
	}
	return entries, nil
}

// CompactEntries merges consecutive tiles sharing the same data into runs.
// Entries must be sorted by TileCode and have RunLength 1.
func CompactEntries(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}
	wi := 0
	for ri := 1; ri < len(entries); ri++ {
		last := &entries[wi]
		if entries[ri].Offset == last.Offset && entries[ri].TileCode == last.TileCode+uint64(last.RunLength) {
			last.RunLength++
			continue
		}
		wi++
		entries[wi] = entries[ri]
	}
	return entries[:wi+1]
}

// FindEntry returns the entry covering tileCode. A returned leaf pointer
// means the search continues in that leaf directory.
func FindEntry(entries []Entry, tileCode uint64) (Entry, bool) {
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].TileCode > tileCode
	})
	if idx == 0 {
		return Entry{}, false
	}

	entry := entries[idx-1]
	if entry.RunLength == 0 || tileCode < entry.TileCode+uint64(entry.RunLength) {
		return entry, true
	}
	return Entry{}, false
}

// Directories holds the compressed root directory and the concatenated
// compressed leaf directories.
type Directories struct {
	Root   []byte
	Leaves []byte
}

// BuildDirectories splits entries into a root directory fitting
// RootDirMaxLength and as few leaf directories as needed.
func BuildDirectories(entries []Entry, compression Compression) (Directories, error) {
	root, err := Compress(SerializeDirectory(entries), compression)
	if err != nil {
		return Directories{}, err
	}
	if len(root) <= RootDirMaxLength {
		return Directories{Root: root}, nil
	}

	entrySize := float64(len(root)) / float64(len(entries))
	maxRootEntries := float64(RootDirMaxLength) * 0.9 / entrySize
	leafSize := max(float64(len(entries))/maxRootEntries, 4096, math.Sqrt(float64(len(entries))))

	for {
		var rootEntries []Entry
		var leaves []byte
		for leafEntries := range slices.Chunk(entries, int(leafSize)) {
			leaf, err := Compress(SerializeDirectory(leafEntries), compression)
			if err != nil {
				return Directories{}, err
			}
			rootEntries = append(rootEntries, Entry{
				TileCode:  leafEntries[0].TileCode,
				Offset:    uint64(len(leaves)),
				Length:    uint32(len(leaf)),
				RunLength: 0,
			})
			leaves = append(leaves, leaf...)
		}

		root, err = Compress(SerializeDirectory(rootEntries), compression)
		if err != nil {
			return Directories{}, err
		}
		if len(root) <= RootDirMaxLength {
			return Directories{Root: root, Leaves: leaves}, nil
		}
		leafSize *= 1.1
	}
}
