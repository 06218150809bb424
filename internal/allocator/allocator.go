// Package allocator manages offsets inside fixed linear address spaces such
// as GPU vertex and index buffers.
package allocator

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/btree"
)

// ErrNotAllocated is returned when freeing an offset that is not taken.
var ErrNotAllocated = errors.New("allocator: offset not allocated")

// Policy controls how freed blocks merge with their neighbours.
type Policy int

const (
	// CoalesceNeighbors merges a freed block with free blocks on both sides.
	CoalesceNeighbors Policy = iota
	// CoalesceNone leaves freed blocks as separate fragments.
	CoalesceNone
)

// ParsePolicy maps a config name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "neighbors":
		return CoalesceNeighbors, nil
	case "none":
		return CoalesceNone, nil
	}
	return CoalesceNeighbors, fmt.Errorf("allocator: unknown coalescing policy %q", name)
}

func (p Policy) String() string {
	if p == CoalesceNone {
		return "none"
	}
	return "neighbors"
}

// Block is one range of the address space.
type Block struct {
	Start uint64
	Size  uint64
	Free  bool
}

// End returns the first offset past the block.
func (b Block) End() uint64 { return b.Start + b.Size }

const nilBlock = -1

type node struct {
	Block
	prev, next int
}

type freeKey struct {
	size, start uint64
	idx         int
}

func lessFree(a, b freeKey) bool {
	if a.size != b.size {
		return a.size < b.size
	}
	return a.start < b.start
}

// Allocator hands out ranges of [0, Size()). Free blocks are searched
// smallest-first, lowest start on ties, so results are deterministic.
// It is not safe for concurrent use.
type Allocator struct {
	size   uint64
	policy Policy
	grow   func(need uint64) bool

	nodes  []node
	unused []int
	head   int
	tail   int

	free  *btree.BTreeG[freeKey]
	taken map[uint64]int
	used  uint64
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithCoalescing selects the merge policy used by Free.
func WithCoalescing(p Policy) Option {
	return func(a *Allocator) { a.policy = p }
}

// WithGrow installs a callback invoked once when an allocation does not fit.
// It may call Expand; returning true retries the allocation.
func WithGrow(fn func(need uint64) bool) Option {
	return func(a *Allocator) { a.grow = fn }
}

// New returns an allocator over [0, size).
func New(size uint64, opts ...Option) *Allocator {
	a := &Allocator{free: btree.NewG(8, lessFree)}
	for _, o := range opts {
		o(a)
	}
	a.Reset(size)
	return a
}

// Reset discards every allocation and spans [0, size) with one free block.
func (a *Allocator) Reset(size uint64) {
	a.size = size
	a.nodes = a.nodes[:0]
	a.unused = a.unused[:0]
	a.free.Clear(false)
	a.taken = make(map[uint64]int)
	a.used = 0
	a.head, a.tail = nilBlock, nilBlock
	if size > 0 {
		i := a.newNode(Block{Start: 0, Size: size, Free: true})
		a.head, a.tail = i, i
		a.indexFree(i)
	}
}

// Clear is Reset at the current size.
func (a *Allocator) Clear() { a.Reset(a.size) }

// Size returns the managed address space length.
func (a *Allocator) Size() uint64 { return a.size }

// Used returns the sum of taken block sizes.
func (a *Allocator) Used() uint64 { return a.used }

// FreeBytes returns the sum of free block sizes.
func (a *Allocator) FreeBytes() uint64 { return a.size - a.used }

// Fragments returns the number of free blocks.
func (a *Allocator) Fragments() int { return a.free.Len() }

// Policy returns the merge policy.
func (a *Allocator) Policy() Policy { return a.policy }

// Allocate reserves size units and returns the start offset.
// ok is false when size is zero or no free block is large enough.
func (a *Allocator) Allocate(size uint64) (offset uint64, ok bool) {
	if size == 0 {
		return 0, false
	}
	i, found := a.findFree(size)
	if !found && a.grow != nil && a.grow(size) {
		i, found = a.findFree(size)
	}
	if !found {
		return 0, false
	}

	a.unindexFree(i)
	n := &a.nodes[i]
	if n.Size > size {
		rest := Block{Start: n.Start + size, Size: n.Size - size, Free: true}
		n.Size = size
		r := a.insertAfter(i, rest)
		a.indexFree(r)
	}
	n = &a.nodes[i]
	n.Free = false
	a.taken[n.Start] = i
	a.used += size
	return n.Start, true
}

// Free releases the block starting at offset.
func (a *Allocator) Free(offset uint64) error {
	i, ok := a.taken[offset]
	if !ok {
		log.Printf("allocator: free of untaken offset %d", offset)
		return fmt.Errorf("%w: %d", ErrNotAllocated, offset)
	}
	delete(a.taken, offset)
	a.nodes[i].Free = true
	a.used -= a.nodes[i].Size

	if a.policy == CoalesceNeighbors {
		if nx := a.nodes[i].next; nx != nilBlock && a.nodes[nx].Free {
			a.unindexFree(nx)
			a.nodes[i].Size += a.nodes[nx].Size
			a.unlink(nx)
		}
		if pv := a.nodes[i].prev; pv != nilBlock && a.nodes[pv].Free {
			a.unindexFree(pv)
			a.nodes[pv].Size += a.nodes[i].Size
			a.unlink(i)
			i = pv
		}
	}
	a.indexFree(i)
	return nil
}

// TakenBlockSize returns the size of the taken block at offset, or 0.
func (a *Allocator) TakenBlockSize(offset uint64) uint64 {
	if i, ok := a.taken[offset]; ok {
		return a.nodes[i].Size
	}
	return 0
}

// Expand grows the address space by amount, extending a trailing free
// block or appending a new one.
func (a *Allocator) Expand(amount uint64) {
	if amount == 0 {
		return
	}
	if a.tail != nilBlock && a.nodes[a.tail].Free {
		a.unindexFree(a.tail)
		a.nodes[a.tail].Size += amount
		a.indexFree(a.tail)
	} else {
		i := a.newNode(Block{Start: a.size, Size: amount, Free: true})
		if a.tail == nilBlock {
			a.head, a.tail = i, i
		} else {
			a.nodes[a.tail].next = i
			a.nodes[i].prev = a.tail
			a.tail = i
		}
		a.indexFree(i)
	}
	a.size += amount
}

// Blocks returns every block in address order.
func (a *Allocator) Blocks() []Block {
	out := make([]Block, 0, len(a.nodes)-len(a.unused))
	for i := a.head; i != nilBlock; i = a.nodes[i].next {
		out = append(out, a.nodes[i].Block)
	}
	return out
}

func (a *Allocator) findFree(size uint64) (int, bool) {
	idx, found := nilBlock, false
	a.free.AscendGreaterOrEqual(freeKey{size: size}, func(k freeKey) bool {
		idx, found = k.idx, true
		return false
	})
	return idx, found
}

func (a *Allocator) indexFree(i int) {
	n := a.nodes[i]
	a.free.ReplaceOrInsert(freeKey{size: n.Size, start: n.Start, idx: i})
}

func (a *Allocator) unindexFree(i int) {
	n := a.nodes[i]
	a.free.Delete(freeKey{size: n.Size, start: n.Start})
}

func (a *Allocator) newNode(b Block) int {
	n := node{Block: b, prev: nilBlock, next: nilBlock}
	if k := len(a.unused); k > 0 {
		i := a.unused[k-1]
		a.unused = a.unused[:k-1]
		a.nodes[i] = n
		return i
	}
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

func (a *Allocator) insertAfter(i int, b Block) int {
	j := a.newNode(b)
	nx := a.nodes[i].next
	a.nodes[j].prev = i
	a.nodes[j].next = nx
	a.nodes[i].next = j
	if nx != nilBlock {
		a.nodes[nx].prev = j
	} else {
		a.tail = j
	}
	return j
}

func (a *Allocator) unlink(i int) {
	pv, nx := a.nodes[i].prev, a.nodes[i].next
	if pv != nilBlock {
		a.nodes[pv].next = nx
	} else {
		a.head = nx
	}
	if nx != nilBlock {
		a.nodes[nx].prev = pv
	} else {
		a.tail = pv
	}
	a.unused = append(a.unused, i)
}
