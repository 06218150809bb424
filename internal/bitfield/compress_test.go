package bitfield

import (
	"bytes"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func randomRows(seed int64) *[Rows]uint64 {
	rng := rand.New(rand.NewSource(seed))
	var rows [Rows]uint64
	for i := range rows {
		switch rng.Intn(4) {
		case 0:
			rows[i] = 0
		case 1:
			rows[i] = ^uint64(0)
		default:
			rows[i] = rng.Uint64()
		}
	}
	return &rows
}

func TestCompressRoundTrip(t *testing.T) {
	cases := map[string]*[Rows]uint64{
		"empty":  new([Rows]uint64),
		"random": randomRows(1),
		"mixed":  randomRows(2),
	}
	full := new([Rows]uint64)
	for i := range full {
		full[i] = ^uint64(0)
	}
	cases["full"] = full
	terrain := new([Rows]uint64)
	for x := 0; x < Size; x++ {
		for y := 0; y < 20; y++ {
			terrain[index(x, y)] = ^uint64(0)
		}
		terrain[index(x, 20)] = 0xF0F0F0F0F0F0F0F0
	}
	cases["terrain"] = terrain

	for name, rows := range cases {
		c := Compress(rows)
		var got [Rows]uint64
		if err := Decompress(&got, c); err != nil {
			t.Fatalf("%s: decompress: %v", name, err)
		}
		if got != *rows {
			t.Fatalf("%s: round trip mismatch", name)
		}
	}
}

func TestCompressUniformIsSmall(t *testing.T) {
	c := Compress(new([Rows]uint64))
	if len(c) != outerWords {
		t.Fatalf("empty field compressed to %d words, want %d", len(c), outerWords)
	}
}

func TestDecompressRejectsCorrupt(t *testing.T) {
	good := Compress(randomRows(5))
	var dst [Rows]uint64
	bad := map[string]CompressedArray{
		"short":     good[:2],
		"truncated": good[:len(good)-1],
		"extended":  append(append(CompressedArray{}, good...), 0),
		"valuemask": append(CompressedArray{0, 0, 1, 0}, good[4:]...),
	}
	for name, c := range bad {
		if err := Decompress(&dst, c); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: got %v, want ErrCorrupt", name, err)
		}
	}
	if dst != ([Rows]uint64{}) {
		t.Fatalf("dst modified on error")
	}
}

func TestFieldCompressRoundTrip(t *testing.T) {
	cache := NewCache(4)
	f := New(cache)
	f.Load(randomRows(9))
	g, err := FromCompressed(cache, f.Compress())
	if err != nil {
		t.Fatal(err)
	}
	if !g.Equal(f) {
		t.Fatalf("field round trip mismatch")
	}
}

func TestCompressedZstdStream(t *testing.T) {
	c := Compress(randomRows(11))
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := ReadCompressed(&buf)
	if err != nil {
		t.Fatalf("ReadCompressed: %v", err)
	}
	if len(got) != len(c) {
		t.Fatalf("length %d, want %d", len(got), len(c))
	}
	for i := range c {
		if got[i] != c[i] {
			t.Fatalf("word %d differs", i)
		}
	}
}

func TestCompressedZstdConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				c := Compress(randomRows(seed*100 + int64(i)))
				var buf bytes.Buffer
				if _, err := c.WriteTo(&buf); err != nil {
					errs <- err
					return
				}
				got, err := ReadCompressed(&buf)
				if err != nil {
					errs <- err
					return
				}
				if len(got) != len(c) || got[len(got)-1] != c[len(c)-1] {
					errs <- errors.New("round trip mismatch")
					return
				}
			}
		}(int64(g))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestReadCompressedRejectsBadFrames(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	// declares 10 words but carries 2
	short := make([]byte, 24)
	short[0] = 10
	if _, err := ReadCompressed(bytes.NewReader(enc.EncodeAll(short, nil))); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("short frame: %v, want ErrCorrupt", err)
	}
	if _, err := ReadCompressed(bytes.NewReader([]byte("not zstd"))); err == nil {
		t.Fatal("garbage accepted")
	}
}

func BenchmarkCompress(b *testing.B) {
	rows := randomRows(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Compress(rows)
	}
}

func BenchmarkDecompress(b *testing.B) {
	c := Compress(randomRows(1))
	var dst [Rows]uint64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Decompress(&dst, c); err != nil {
			b.Fatal(err)
		}
	}
}
