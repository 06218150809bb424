package allocator

import (
	"fmt"
	"log"

	"github.com/gammazero/deque"
)

// Pool hands out fixed slots in [0, Capacity()). Released slots are reused
// in release order before untouched ones.
type Pool struct {
	capacity uint32
	next     uint32
	released deque.Deque[uint32]
	inUse    []bool
	count    int
}

// NewPool returns a pool of capacity slots.
func NewPool(capacity uint32) *Pool {
	return &Pool{capacity: capacity, inUse: make([]bool, capacity)}
}

// Acquire takes a slot. ok is false when every slot is in use.
func (p *Pool) Acquire() (slot uint32, ok bool) {
	if p.released.Len() > 0 {
		slot = p.released.PopFront()
	} else if p.next < p.capacity {
		slot = p.next
		p.next++
	} else {
		return 0, false
	}
	p.inUse[slot] = true
	p.count++
	return slot, true
}

// Release returns slot to the pool.
func (p *Pool) Release(slot uint32) error {
	if slot >= p.capacity || !p.inUse[slot] {
		log.Printf("allocator: release of unused slot %d", slot)
		return fmt.Errorf("%w: slot %d", ErrNotAllocated, slot)
	}
	p.inUse[slot] = false
	p.count--
	p.released.PushBack(slot)
	return nil
}

// InUse returns the number of acquired slots.
func (p *Pool) InUse() int { return p.count }

// Capacity returns the slot count.
func (p *Pool) Capacity() uint32 { return p.capacity }

// Reset releases every slot.
func (p *Pool) Reset() {
	p.next = 0
	p.released.Clear()
	for i := range p.inUse {
		p.inUse[i] = false
	}
	p.count = 0
}
