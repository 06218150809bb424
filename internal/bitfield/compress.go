package bitfield

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/klauspost/compress/zstd"
)

// ErrCorrupt is returned when compressed input fails its size or mask checks.
var ErrCorrupt = errors.New("bitfield: corrupt compressed data")

// CompressedArray is the run-compressed form of a field's 4096 rows.
//
// Layout: [U2 (2 words)][V2 (2 words)][header literals][row literals].
// The row header is U1 (64 words, bit x of word y marks row (x,y) uniform)
// followed by V1 (same shape, the uniform value). U2/V2 compress those 128
// header words the same way, one bit per word.
type CompressedArray []uint64

const (
	headerWords = 2 * Size // U1 + V1
	outerWords  = 4        // U2 + V2
)

// Compress encodes rows.
func Compress(rows *[Rows]uint64) CompressedArray {
	var header [headerWords]uint64
	uniform := header[:Size]
	value := header[Size:]

	literals := make([]uint64, 0, 64)
	for x := 0; x < Size; x++ {
		for y := 0; y < Size; y++ {
			r := rows[index(x, y)]
			switch r {
			case 0:
				uniform[y] |= 1 << uint(x)
			case ^uint64(0):
				uniform[y] |= 1 << uint(x)
				value[y] |= 1 << uint(x)
			default:
				literals = append(literals, r)
			}
		}
	}

	var outer [outerWords]uint64
	headerLits := make([]uint64, 0, headerWords)
	for i, w := range header {
		bit := uint64(1) << uint(i%64)
		switch w {
		case 0:
			outer[i/64] |= bit
		case ^uint64(0):
			outer[i/64] |= bit
			outer[2+i/64] |= bit
		default:
			headerLits = append(headerLits, w)
		}
	}

	out := make(CompressedArray, 0, outerWords+len(headerLits)+len(literals))
	out = append(out, outer[:]...)
	out = append(out, headerLits...)
	out = append(out, literals...)
	return out
}

// Decompress decodes src into dst. dst is untouched on error.
func Decompress(dst *[Rows]uint64, src CompressedArray) error {
	if len(src) < outerWords {
		return fmt.Errorf("%w: %d words, need at least %d", ErrCorrupt, len(src), outerWords)
	}
	u2, v2 := src[0:2], src[2:4]
	if v2[0]&^u2[0] != 0 || v2[1]&^u2[1] != 0 {
		return fmt.Errorf("%w: outer value mask outside uniform mask", ErrCorrupt)
	}
	headerLits := headerWords - bits.OnesCount64(u2[0]) - bits.OnesCount64(u2[1])
	if len(src) < outerWords+headerLits {
		return fmt.Errorf("%w: truncated header", ErrCorrupt)
	}

	var header [headerWords]uint64
	p := outerWords
	for i := range header {
		bit := uint64(1) << uint(i%64)
		if u2[i/64]&bit != 0 {
			if v2[i/64]&bit != 0 {
				header[i] = ^uint64(0)
			}
			continue
		}
		header[i] = src[p]
		p++
	}
	uniform := header[:Size]
	value := header[Size:]

	rowLits := Rows
	for y := 0; y < Size; y++ {
		if value[y]&^uniform[y] != 0 {
			return fmt.Errorf("%w: row value mask outside uniform mask", ErrCorrupt)
		}
		rowLits -= bits.OnesCount64(uniform[y])
	}
	if want := p + rowLits; len(src) != want {
		return fmt.Errorf("%w: %d words, want %d", ErrCorrupt, len(src), want)
	}

	var rows [Rows]uint64
	for x := 0; x < Size; x++ {
		bit := uint64(1) << uint(x)
		for y := 0; y < Size; y++ {
			if uniform[y]&bit != 0 {
				if value[y]&bit != 0 {
					rows[index(x, y)] = ^uint64(0)
				}
				continue
			}
			rows[index(x, y)] = src[p]
			p++
		}
	}
	*dst = rows
	return nil
}

// Compress encodes the current contents of f.
func (f *Field) Compress() CompressedArray {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Compress(&f.rows)
}

// Decompress replaces the contents of f with src.
func (f *Field) Decompress(src CompressedArray) error {
	var rows [Rows]uint64
	if err := Decompress(&rows, src); err != nil {
		return err
	}
	f.Load(&rows)
	return nil
}

// FromCompressed builds a new field from src.
func FromCompressed(cache *Cache, src CompressedArray) (*Field, error) {
	f := New(cache)
	if err := f.Decompress(src); err != nil {
		return nil, err
	}
	return f, nil
}

// Shared coders. EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(8*(maxCompressedWords+1)))
)

// WriteTo writes c as one zstd frame holding a word count followed by
// little-endian words.
func (c CompressedArray) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 8*(len(c)+1))
	binary.LittleEndian.PutUint64(buf, uint64(len(c)))
	for i, v := range c {
		binary.LittleEndian.PutUint64(buf[8*(i+1):], v)
	}
	n, err := w.Write(encoder.EncodeAll(buf, nil))
	if err != nil {
		return int64(n), fmt.Errorf("bitfield: zstd write: %w", err)
	}
	return int64(n), nil
}

// maxCompressedWords bounds the declared length read back by ReadCompressed.
const maxCompressedWords = outerWords + headerWords + Rows

// ReadCompressed reads an array written by WriteTo. r must end where the
// array does.
func ReadCompressed(r io.Reader) (CompressedArray, error) {
	packed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("bitfield: read frame: %w", err)
	}
	raw, err := decoder.DecodeAll(packed, nil)
	if err != nil {
		return nil, fmt.Errorf("bitfield: zstd decode: %w", err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrCorrupt, len(raw))
	}
	n := binary.LittleEndian.Uint64(raw)
	if n < outerWords || n > maxCompressedWords {
		return nil, fmt.Errorf("%w: declared length %d", ErrCorrupt, n)
	}
	if uint64(len(raw)) != 8*(n+1) {
		return nil, fmt.Errorf("%w: %d words declared in %d bytes", ErrCorrupt, n, len(raw))
	}
	out := make(CompressedArray, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(raw[8*(i+1):])
	}
	return out, nil
}
