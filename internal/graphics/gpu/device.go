// Package gpu holds the persistently mapped buffers, indirect draw commands
// and the devices that back them.
package gpu

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfSpace reports that a fixed-size buffer cannot take more data.
	ErrOutOfSpace = errors.New("gpu: out of buffer space")
	// ErrMapFailed reports that a buffer could not be mapped persistently.
	ErrMapFailed = errors.New("gpu: buffer mapping failed")
)

// Kind selects what a buffer is bound as.
type Kind int

const (
	// KindVertex holds packed vertices, read by the vertex shader from
	// storage binding VertexBinding.
	KindVertex Kind = iota
	// KindIndex is the element array buffer.
	KindIndex
	// KindCommand is the draw indirect buffer.
	KindCommand
	// KindInstance holds per-chunk origins at storage binding InstanceBinding,
	// indexed by the draw command's base instance.
	KindInstance
)

// Storage binding points used by the chunk shader.
const (
	InstanceBinding = 0
	VertexBinding   = 1
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindIndex:
		return "index"
	case KindCommand:
		return "command"
	case KindInstance:
		return "instance"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Buffer is a fixed-size buffer mapped for its whole lifetime. Writes to
// Bytes are visible to the GPU without an explicit flush.
type Buffer interface {
	Bytes() []byte
	Size() int
	Kind() Kind
	Bind()
	Close()
}

// Fence marks a point in the command stream. The zero Fence is always signalled.
type Fence uintptr

// Device creates buffers and submits draws. All methods must be called from
// the thread that owns the graphics context.
type Device interface {
	NewBuffer(kind Kind, size int) (Buffer, error)
	// MultiDrawIndirect draws count commands starting at byte commandOffset of
	// the bound command buffer.
	MultiDrawIndirect(commandOffset, count int)
	Fence() Fence
	// Wait blocks until f is signalled and releases it.
	Wait(f Fence)
	// Release drops f without waiting.
	Release(f Fence)
	// AvailableMemory returns free device memory in bytes, or 0 if unknown.
	AvailableMemory() int
}

// Budget returns fraction of the device's available memory, or fallback when
// the device cannot report it.
func Budget(d Device, fraction float64, fallback int) int {
	avail := d.AvailableMemory()
	if avail <= 0 || fraction <= 0 {
		return fallback
	}
	if fraction > 1 {
		fraction = 1
	}
	return int(float64(avail) * fraction)
}
