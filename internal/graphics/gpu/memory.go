package gpu

import (
	"fmt"
	"sync"
)

// DrawCall is one MultiDrawIndirect recorded by a MemoryDevice.
type DrawCall struct {
	Offset   int
	Count    int
	Commands []DrawCommand
}

// MemoryDevice is a headless Device backed by plain byte slices. It records
// every draw so callers can inspect what would reach the GPU.
type MemoryDevice struct {
	mu       sync.Mutex
	memory   int
	bound    map[Kind]*memoryBuffer
	calls    []DrawCall
	fences   Fence
	live     map[Fence]bool
	maxBytes int
	used     int
}

// NewMemoryDevice creates a device reporting memory bytes available. A
// non-zero memory also caps the total size of buffers.
func NewMemoryDevice(memory int) *MemoryDevice {
	return &MemoryDevice{
		memory:   memory,
		maxBytes: memory,
		bound:    make(map[Kind]*memoryBuffer),
		live:     make(map[Fence]bool),
	}
}

type memoryBuffer struct {
	dev  *MemoryDevice
	kind Kind
	data []byte
}

func (b *memoryBuffer) Bytes() []byte { return b.data }
func (b *memoryBuffer) Size() int     { return len(b.data) }
func (b *memoryBuffer) Kind() Kind    { return b.kind }

func (b *memoryBuffer) Bind() {
	b.dev.mu.Lock()
	b.dev.bound[b.kind] = b
	b.dev.mu.Unlock()
}

func (b *memoryBuffer) Close() {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	if b.data == nil {
		return
	}
	if b.dev.bound[b.kind] == b {
		delete(b.dev.bound, b.kind)
	}
	b.dev.used -= len(b.data)
	b.data = nil
}

func (d *MemoryDevice) NewBuffer(kind Kind, size int) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("gpu: %v buffer of %d bytes: %w", kind, size, ErrMapFailed)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.maxBytes > 0 && d.used+size > d.maxBytes {
		return nil, fmt.Errorf("gpu: %v buffer of %d bytes: %w", kind, size, ErrOutOfSpace)
	}
	d.used += size
	return &memoryBuffer{dev: d, kind: kind, data: make([]byte, size)}, nil
}

func (d *MemoryDevice) MultiDrawIndirect(commandOffset, count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	call := DrawCall{Offset: commandOffset, Count: count}
	if b := d.bound[KindCommand]; b != nil {
		call.Commands = make([]DrawCommand, 0, count)
		for i := 0; i < count; i++ {
			off := commandOffset + i*DrawCommandSize
			if off+DrawCommandSize > len(b.data) {
				break
			}
			call.Commands = append(call.Commands, ReadDrawCommand(b.data[off:]))
		}
	}
	d.calls = append(d.calls, call)
}

func (d *MemoryDevice) Fence() Fence {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences++
	d.live[d.fences] = true
	return d.fences
}

func (d *MemoryDevice) Wait(f Fence) { d.Release(f) }

func (d *MemoryDevice) Release(f Fence) {
	d.mu.Lock()
	delete(d.live, f)
	d.mu.Unlock()
}

func (d *MemoryDevice) AvailableMemory() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.memory == 0 {
		return 0
	}
	return d.memory - d.used
}

// Calls returns the recorded draws.
func (d *MemoryDevice) Calls() []DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawCall(nil), d.calls...)
}

// LiveFences returns the number of fences placed and not yet released.
func (d *MemoryDevice) LiveFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Reset forgets recorded draws.
func (d *MemoryDevice) Reset() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}
