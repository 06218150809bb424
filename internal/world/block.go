package world

import (
	"fmt"
	"sort"
	"sync"
)

type BlockType uint16

const (
	BlockTypeAir BlockType = iota
	BlockTypeStone
	BlockTypeDirt
	BlockTypeGrass
	BlockTypeSand
	BlockTypeGlass
	BlockTypeWater
	BlockTypeFlower
	BlockTypeTallGrass
)

// Shape selects how a block type is meshed.
type Shape uint8

const (
	// ShapeFull is a unit cube, greedy meshed.
	ShapeFull Shape = iota
	// ShapeBillboard is two crossed diagonal quads per cell.
	ShapeBillboard
)

// BlockFace identifies a face of a block
type BlockFace int

const (
	FaceEast   BlockFace = iota // +X
	FaceWest                    // -X
	FaceTop                     // +Y
	FaceBottom                  // -Y
	FaceSouth                   // +Z
	FaceNorth                   // -Z
)

// Forward reports whether the face points along the positive axis.
func (f BlockFace) Forward() bool { return f%2 == 0 }

// Axis returns 0, 1 or 2 for X, Y or Z.
func (f BlockFace) Axis() int { return int(f) / 2 }

// BlockDefinition defines the properties of a block type
type BlockDefinition struct {
	ID          BlockType
	Name        string
	Shape       Shape
	Transparent bool
	// Textures holds one atlas layer per BlockFace.
	Textures [6]uint16
}

// Opaque reports whether the block hides the faces of its neighbours.
func (d *BlockDefinition) Opaque() bool {
	return d.ID != BlockTypeAir && d.Shape == ShapeFull && !d.Transparent
}

var (
	blocksMu   sync.RWMutex
	blocks     = make(map[BlockType]*BlockDefinition)
	blockNames = make(map[string]BlockType)
	airBlock   = &BlockDefinition{ID: BlockTypeAir, Name: "air", Transparent: true}
)

func sameTexture(t uint16) [6]uint16 { return [6]uint16{t, t, t, t, t, t} }

func init() {
	RegisterBlock(airBlock)
	RegisterBlock(&BlockDefinition{ID: BlockTypeStone, Name: "stone", Textures: sameTexture(1)})
	RegisterBlock(&BlockDefinition{ID: BlockTypeDirt, Name: "dirt", Textures: sameTexture(2)})
	RegisterBlock(&BlockDefinition{ID: BlockTypeGrass, Name: "grass", Textures: [6]uint16{3, 3, 4, 2, 3, 3}})
	RegisterBlock(&BlockDefinition{ID: BlockTypeSand, Name: "sand", Textures: sameTexture(5)})
	RegisterBlock(&BlockDefinition{ID: BlockTypeGlass, Name: "glass", Transparent: true, Textures: sameTexture(6)})
	RegisterBlock(&BlockDefinition{ID: BlockTypeWater, Name: "water", Transparent: true, Textures: sameTexture(7)})
	RegisterBlock(&BlockDefinition{ID: BlockTypeFlower, Name: "flower", Shape: ShapeBillboard, Transparent: true, Textures: sameTexture(8)})
	RegisterBlock(&BlockDefinition{ID: BlockTypeTallGrass, Name: "tall_grass", Shape: ShapeBillboard, Transparent: true, Textures: sameTexture(9)})
}

// RegisterBlock adds or replaces a block definition.
func RegisterBlock(def *BlockDefinition) {
	blocksMu.Lock()
	defer blocksMu.Unlock()
	blocks[def.ID] = def
	blockNames[def.Name] = def.ID
}

// Block returns the definition for t. Unknown types resolve to air.
func Block(t BlockType) *BlockDefinition {
	blocksMu.RLock()
	defer blocksMu.RUnlock()
	if d, ok := blocks[t]; ok {
		return d
	}
	return airBlock
}

// BlockByName looks a block up by its registered name.
func BlockByName(name string) (BlockType, error) {
	blocksMu.RLock()
	defer blocksMu.RUnlock()
	if t, ok := blockNames[name]; ok {
		return t, nil
	}
	return BlockTypeAir, fmt.Errorf("world: unknown block %q", name)
}

// BlockTypes returns every registered type in ascending order.
func BlockTypes() []BlockType {
	blocksMu.RLock()
	out := make([]BlockType, 0, len(blocks))
	for t := range blocks {
		out = append(out, t)
	}
	blocksMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
