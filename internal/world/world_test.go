package world

import (
	"sync"
	"testing"

	"voxelcore/internal/bitfield"
)

func TestChunkSetGet(t *testing.T) {
	c := NewChunk(ChunkCoord{}, bitfield.NewCache(8))
	if !c.SetBlock(1, 2, 3, BlockTypeStone) {
		t.Fatalf("SetBlock reported no change")
	}
	if got := c.GetBlock(1, 2, 3); got != BlockTypeStone {
		t.Fatalf("GetBlock = %d, want stone", got)
	}
	if c.SetBlock(1, 2, 3, BlockTypeStone) {
		t.Fatalf("setting the same type should report no change")
	}
	if !c.Solid().Get(1, 2, 3) {
		t.Fatalf("stone not in solid field")
	}
	c.SetBlock(1, 2, 3, BlockTypeGlass)
	if c.Solid().Get(1, 2, 3) {
		t.Fatalf("glass should not be solid")
	}
	if len(c.Layers()) != 1 || c.Layers()[0].Type != BlockTypeGlass {
		t.Fatalf("stone layer should be dropped once empty")
	}
	c.SetBlock(1, 2, 3, BlockTypeAir)
	if !c.Empty() {
		t.Fatalf("chunk should be empty")
	}
	if c.SetBlock(64, 0, 0, BlockTypeStone) || c.GetBlock(-1, 0, 0) != BlockTypeAir {
		t.Fatalf("out of range access should be ignored")
	}
}

func TestChunkSetLayerReplacesOverlap(t *testing.T) {
	c := NewChunk(ChunkCoord{}, bitfield.NewCache(8))
	c.Fill(BlockTypeStone)
	var rows [bitfield.Rows]uint64
	rows[0] = ^uint64(0)
	c.SetLayer(BlockTypeWater, &rows)
	if c.GetBlock(0, 0, 5) != BlockTypeWater {
		t.Fatalf("water layer not applied")
	}
	if c.Solid().Row(0, 0) != 0 {
		t.Fatalf("water row should not be solid")
	}
	if c.GetBlock(1, 0, 5) != BlockTypeStone || !c.Solid().Get(1, 0, 5) {
		t.Fatalf("stone outside the overlap should remain")
	}
}

func TestFloorDivAndChunkOf(t *testing.T) {
	cases := []struct{ a, want int }{{0, 0}, {63, 0}, {64, 1}, {-1, -1}, {-64, -1}, {-65, -2}}
	for _, c := range cases {
		if got := FloorDiv(c.a, ChunkSize); got != c.want {
			t.Errorf("FloorDiv(%d) = %d, want %d", c.a, got, c.want)
		}
	}
	coord, x, y, z := ChunkOf(-1, 64, 5)
	if coord != (ChunkCoord{-1, 1, 0}) || x != 63 || y != 0 || z != 5 {
		t.Fatalf("ChunkOf = %v %d %d %d", coord, x, y, z)
	}
}

func TestChunkStoreGetOrCreateRace(t *testing.T) {
	cs := NewChunkStore(bitfield.NewCache(8))
	coord := ChunkCoord{X: 3, Y: -1, Z: 2}
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	seen := make(map[*Chunk]bool)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, ok := cs.GetOrCreate(coord)
			mu.Lock()
			seen[c] = true
			if ok {
				created++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if created != 1 || len(seen) != 1 {
		t.Fatalf("created=%d distinct=%d, want 1 and 1", created, len(seen))
	}
	if len(cs.Column(3, 2)) != 1 {
		t.Fatalf("column index not maintained")
	}
	if cs.RemoveChunk(coord) == nil || cs.HasChunk(coord) || len(cs.Columns()) != 0 {
		t.Fatalf("RemoveChunk did not clean up")
	}
}

func TestChunkStoreSetMarksBorderNeighbors(t *testing.T) {
	cs := NewChunkStore(bitfield.NewCache(8))
	cs.GetOrCreate(ChunkCoord{X: -1})
	n, _ := cs.GetOrCreate(ChunkCoord{Y: 1})
	n.SetClean(bitfield.LevelNone)

	affected := cs.Set(0, 63, 10, BlockTypeDirt)
	if len(affected) != 3 {
		t.Fatalf("affected %d chunks, want 3", len(affected))
	}
	if affected[0].Coord != (ChunkCoord{}) {
		t.Fatalf("owner should come first")
	}
	if !n.IsDirty() {
		t.Fatalf("neighbor above not marked dirty")
	}
	if cs.Get(0, 63, 10) != BlockTypeDirt {
		t.Fatalf("Get after Set mismatch")
	}
	if cs.Set(0, 63, 10, BlockTypeDirt) != nil {
		t.Fatalf("no-op Set should affect nothing")
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	cache := bitfield.NewCache(8)
	c := NewChunk(ChunkCoord{X: 1, Y: 2, Z: 3}, cache)
	for x := 0; x < 64; x++ {
		for z := 0; z < 64; z++ {
			c.SetBlock(x, 0, z, BlockTypeStone)
			if (x+z)%7 == 0 {
				c.SetBlock(x, 1, z, BlockTypeFlower)
			}
		}
	}
	a := NewArchive(0)
	if ok, err := a.Store(c); !ok || err != nil {
		t.Fatalf("Store: %v %v", ok, err)
	}
	if !a.Has(c.Coord) || a.Len() != 1 || a.Bytes() == 0 {
		t.Fatalf("archive bookkeeping wrong")
	}
	r, ok, err := a.Restore(c.Coord, cache)
	if err != nil || !ok {
		t.Fatalf("Restore: %v %v", ok, err)
	}
	if got, want := len(r.Layers()), len(c.Layers()); got != want {
		t.Fatalf("restored %d layers, want %d", got, want)
	}
	for i, l := range c.Layers() {
		if !r.Layers()[i].Field.Equal(l.Field) {
			t.Fatalf("layer %d differs", l.Type)
		}
	}
	if !r.Solid().Equal(c.Solid()) {
		t.Fatalf("solid field differs")
	}
	if a.Len() != 0 || a.Bytes() != 0 {
		t.Fatalf("Restore should remove the entry")
	}
	if _, ok, _ := a.Restore(c.Coord, cache); ok {
		t.Fatalf("second Restore should miss")
	}
}

func TestArchiveLimit(t *testing.T) {
	c := NewChunk(ChunkCoord{}, nil)
	c.SetBlock(0, 0, 0, BlockTypeDirt)
	a := NewArchive(1)
	if ok, err := a.Store(c); ok || err != nil {
		t.Fatalf("Store over limit = %v, %v", ok, err)
	}
}

func TestArchiveEmptyChunk(t *testing.T) {
	cache := bitfield.NewCache(8)
	c := NewChunk(ChunkCoord{X: -4}, cache)
	c.SetBlock(3, 3, 3, BlockTypeStone)
	c.SetBlock(3, 3, 3, BlockTypeAir)
	a := NewArchive(1)
	if ok, err := a.Store(c); !ok || err != nil {
		t.Fatalf("Store of an empty chunk = %v, %v", ok, err)
	}
	if !a.Has(c.Coord) {
		t.Fatal("empty chunk not archived")
	}
	r, ok, err := a.Restore(c.Coord, cache)
	if err != nil || !ok {
		t.Fatalf("Restore: %v %v", ok, err)
	}
	if !r.Empty() || !r.IsDirty() {
		t.Fatalf("restored chunk empty=%v dirty=%v", r.Empty(), r.IsDirty())
	}
}
