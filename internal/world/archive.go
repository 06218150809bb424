package world

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"voxelcore/internal/bitfield"
)

// Archive keeps unloaded chunks in compressed form so that revisiting an
// area restores them without running the generator again. Each entry is a
// sequence of (block type, length, zstd-packed CompressedArray) records.
type Archive struct {
	mu      sync.Mutex
	entries map[ChunkCoord][]byte
	bytes   int
	limit   int
}

// NewArchive returns an archive holding at most limit bytes; 0 means unbounded.
// When full, Store refuses new entries rather than evicting old ones.
func NewArchive(limit int) *Archive {
	return &Archive{entries: make(map[ChunkCoord][]byte), limit: limit}
}

// Store packs c. It reports false if the archive is full.
func (a *Archive) Store(c *Chunk) (bool, error) {
	var buf, rec bytes.Buffer
	var head [6]byte
	for _, l := range c.Layers() {
		rec.Reset()
		if _, err := l.Field.Compress().WriteTo(&rec); err != nil {
			return false, fmt.Errorf("archive chunk %v: %w", c.Coord, err)
		}
		binary.LittleEndian.PutUint16(head[0:], uint16(l.Type))
		binary.LittleEndian.PutUint32(head[2:], uint32(rec.Len()))
		buf.Write(head[:])
		buf.Write(rec.Bytes())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	old := len(a.entries[c.Coord])
	if a.limit > 0 && a.bytes-old+buf.Len() > a.limit {
		return false, nil
	}
	a.entries[c.Coord] = buf.Bytes()
	a.bytes += buf.Len() - old
	return true, nil
}

// Restore unpacks and removes the chunk at coord.
func (a *Archive) Restore(coord ChunkCoord, cache *bitfield.Cache) (*Chunk, bool, error) {
	a.mu.Lock()
	data, ok := a.entries[coord]
	if ok {
		delete(a.entries, coord)
		a.bytes -= len(data)
	}
	a.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	c := NewChunk(coord, cache)
	for len(data) > 0 {
		if len(data) < 6 {
			return nil, false, fmt.Errorf("restore chunk %v: truncated record header", coord)
		}
		t := BlockType(binary.LittleEndian.Uint16(data[0:]))
		n := int(binary.LittleEndian.Uint32(data[2:]))
		data = data[6:]
		if n > len(data) {
			return nil, false, fmt.Errorf("restore chunk %v: record of %d bytes exceeds entry", coord, n)
		}
		arr, err := bitfield.ReadCompressed(bytes.NewReader(data[:n]))
		if err != nil {
			return nil, false, fmt.Errorf("restore chunk %v: %w", coord, err)
		}
		data = data[n:]
		var rows [bitfield.Rows]uint64
		if err := bitfield.Decompress(&rows, arr); err != nil {
			return nil, false, fmt.Errorf("restore chunk %v: %w", coord, err)
		}
		c.SetLayer(t, &rows)
	}
	return c, true, nil
}

// Has reports whether coord is archived.
func (a *Archive) Has(coord ChunkCoord) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.entries[coord]
	return ok
}

// Len returns the number of archived chunks.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Bytes returns the total packed size.
func (a *Archive) Bytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

// Coords lists archived chunk positions in a stable order.
func (a *Archive) Coords() []ChunkCoord {
	a.mu.Lock()
	out := make([]ChunkCoord, 0, len(a.entries))
	for c := range a.entries {
		out = append(out, c)
	}
	a.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Z < out[j].Z
	})
	return out
}
