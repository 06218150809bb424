package gpu

import (
	"encoding/binary"
	"fmt"
	"log"
)

// DrawCommandSize is the byte size of one indirect elements command.
const DrawCommandSize = 20

// DrawCommand mirrors the GL DrawElementsIndirectCommand layout.
type DrawCommand struct {
	Count         uint32 // indices to draw
	InstanceCount uint32 // 1 for a drawn chunk
	FirstIndex    uint32 // offset into the index buffer, in indices
	BaseVertex    int32  // added to every index, in vertices
	BaseInstance  uint32 // instance slot holding the chunk origin
}

// Put encodes c into dst[:DrawCommandSize].
func (c DrawCommand) Put(dst []byte) {
	_ = dst[DrawCommandSize-1]
	binary.LittleEndian.PutUint32(dst[0:], c.Count)
	binary.LittleEndian.PutUint32(dst[4:], c.InstanceCount)
	binary.LittleEndian.PutUint32(dst[8:], c.FirstIndex)
	binary.LittleEndian.PutUint32(dst[12:], uint32(c.BaseVertex))
	binary.LittleEndian.PutUint32(dst[16:], c.BaseInstance)
}

// ReadDrawCommand decodes a command from src.
func ReadDrawCommand(src []byte) DrawCommand {
	_ = src[DrawCommandSize-1]
	return DrawCommand{
		Count:         binary.LittleEndian.Uint32(src[0:]),
		InstanceCount: binary.LittleEndian.Uint32(src[4:]),
		FirstIndex:    binary.LittleEndian.Uint32(src[8:]),
		BaseVertex:    int32(binary.LittleEndian.Uint32(src[12:])),
		BaseInstance:  binary.LittleEndian.Uint32(src[16:]),
	}
}

// CommandBuffer is an indirect command buffer split into two halves, so the
// CPU fills one while the GPU may still read the other.
type CommandBuffer struct {
	dev      Device
	buf      Buffer
	capacity int

	half   int
	count  int
	fences [2]Fence
}

// NewCommandBuffer allocates room for capacity commands per half.
func NewCommandBuffer(dev Device, capacity int) (*CommandBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("gpu: command capacity %d: %w", capacity, ErrOutOfSpace)
	}
	buf, err := dev.NewBuffer(KindCommand, 2*capacity*DrawCommandSize)
	if err != nil {
		return nil, fmt.Errorf("gpu: command buffer: %w", err)
	}
	return &CommandBuffer{dev: dev, buf: buf, capacity: capacity}, nil
}

// Begin switches to the other half, waiting until the GPU is done with it,
// and empties it.
func (b *CommandBuffer) Begin() {
	b.half ^= 1
	if f := b.fences[b.half]; f != 0 {
		b.dev.Wait(f)
		b.fences[b.half] = 0
	}
	b.count = 0
}

// Append writes commands into the current half and returns how many fit.
func (b *CommandBuffer) Append(cmds ...DrawCommand) int {
	n := min(len(cmds), b.capacity-b.count)
	if n < len(cmds) {
		log.Printf("gpu: command buffer full, dropping %d draws", len(cmds)-n)
	}
	data := b.buf.Bytes()
	off := b.offset() + b.count*DrawCommandSize
	for i := 0; i < n; i++ {
		cmds[i].Put(data[off+i*DrawCommandSize:])
	}
	b.count += n
	return n
}

// Full reports whether the current half has no room left.
func (b *CommandBuffer) Full() bool { return b.count >= b.capacity }

// Submit draws the current half with a single multi-draw and fences it.
func (b *CommandBuffer) Submit() {
	if b.count == 0 {
		return
	}
	b.buf.Bind()
	b.dev.MultiDrawIndirect(b.offset(), b.count)
	if f := b.fences[b.half]; f != 0 {
		b.dev.Release(f)
	}
	b.fences[b.half] = b.dev.Fence()
}

// Command returns command i of the current half.
func (b *CommandBuffer) Command(i int) DrawCommand {
	return ReadDrawCommand(b.buf.Bytes()[b.offset()+i*DrawCommandSize:])
}

func (b *CommandBuffer) offset() int { return b.half * b.capacity * DrawCommandSize }

// Count returns the number of commands in the current half.
func (b *CommandBuffer) Count() int { return b.count }

// Capacity returns the number of commands one half holds.
func (b *CommandBuffer) Capacity() int { return b.capacity }

// Close releases the fences and the buffer.
func (b *CommandBuffer) Close() {
	for i, f := range b.fences {
		if f != 0 {
			b.dev.Release(f)
			b.fences[i] = 0
		}
	}
	b.buf.Close()
}
