package gpu

import (
	"fmt"
	"log"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
)

const (
	gpuMemoryInfoCurrentAvailableNVX = 0x9049
	vboFreeMemoryATI                 = 0x87FB

	fenceTimeout = 10_000_000 // ns
)

// GLDevice implements Device on an OpenGL 4.6 core context.
type GLDevice struct {
	vao uint32
}

// NewGLDevice creates a device on the current context. gl.Init must have run.
func NewGLDevice() *GLDevice {
	d := &GLDevice{}
	// vertices are pulled from storage buffers, but core profile still
	// needs a bound vertex array
	gl.GenVertexArrays(1, &d.vao)
	return d
}

type glBuffer struct {
	id   uint32
	kind Kind
	data []byte
}

func target(k Kind) uint32 {
	switch k {
	case KindIndex:
		return gl.ELEMENT_ARRAY_BUFFER
	case KindCommand:
		return gl.DRAW_INDIRECT_BUFFER
	}
	return gl.SHADER_STORAGE_BUFFER
}

// NewBuffer allocates immutable storage and maps it write-only, persistent
// and coherent for the buffer's lifetime.
func (d *GLDevice) NewBuffer(kind Kind, size int) (Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("gpu: %v buffer of %d bytes: %w", kind, size, ErrMapFailed)
	}
	b := &glBuffer{kind: kind}
	t := target(kind)
	flags := uint32(gl.MAP_WRITE_BIT | gl.MAP_PERSISTENT_BIT | gl.MAP_COHERENT_BIT)

	gl.BindVertexArray(d.vao)
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(t, b.id)
	gl.BufferStorage(t, size, nil, flags)
	if e := gl.GetError(); e != gl.NO_ERROR {
		gl.DeleteBuffers(1, &b.id)
		if e == gl.OUT_OF_MEMORY {
			return nil, fmt.Errorf("gpu: %v buffer of %d bytes: %w", kind, size, ErrOutOfSpace)
		}
		return nil, fmt.Errorf("gpu: BufferStorage error 0x%x: %w", e, ErrMapFailed)
	}
	ptr := gl.MapBufferRange(t, 0, size, flags)
	if ptr == nil {
		gl.DeleteBuffers(1, &b.id)
		return nil, fmt.Errorf("gpu: %v buffer of %d bytes: %w", kind, size, ErrMapFailed)
	}
	b.data = unsafe.Slice((*byte)(ptr), size)
	log.Printf("gpu: mapped %v buffer %d (%d KiB)", kind, b.id, size/1024)
	return b, nil
}

func (b *glBuffer) Bytes() []byte { return b.data }
func (b *glBuffer) Size() int     { return len(b.data) }
func (b *glBuffer) Kind() Kind    { return b.kind }

func (b *glBuffer) Bind() {
	switch b.kind {
	case KindVertex:
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, VertexBinding, b.id)
	case KindInstance:
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, InstanceBinding, b.id)
	default:
		gl.BindBuffer(target(b.kind), b.id)
	}
}

func (b *glBuffer) Close() {
	if b.id == 0 {
		return
	}
	gl.BindBuffer(target(b.kind), b.id)
	gl.UnmapBuffer(target(b.kind))
	gl.DeleteBuffers(1, &b.id)
	b.id = 0
	b.data = nil
}

func (d *GLDevice) MultiDrawIndirect(commandOffset, count int) {
	gl.BindVertexArray(d.vao)
	gl.MultiDrawElementsIndirect(gl.TRIANGLES, gl.UNSIGNED_INT, gl.PtrOffset(commandOffset), int32(count), DrawCommandSize)
}

func (d *GLDevice) Fence() Fence {
	return Fence(gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0))
}

func (d *GLDevice) Wait(f Fence) {
	if f == 0 {
		return
	}
	for {
		status := gl.ClientWaitSync(uintptr(f), gl.SYNC_FLUSH_COMMANDS_BIT, fenceTimeout)
		if status != gl.TIMEOUT_EXPIRED {
			break
		}
		log.Printf("gpu: fence wait timeout")
	}
	gl.DeleteSync(uintptr(f))
}

func (d *GLDevice) Release(f Fence) {
	if f != 0 {
		gl.DeleteSync(uintptr(f))
	}
}

// AvailableMemory queries the NVX or ATI memory info extensions. Both report
// KiB; drivers supporting neither give 0.
func (d *GLDevice) AvailableMemory() int {
	var kb [4]int32
	gl.GetIntegerv(gpuMemoryInfoCurrentAvailableNVX, &kb[0])
	if gl.GetError() == gl.NO_ERROR && kb[0] > 0 {
		return int(kb[0]) * 1024
	}
	kb[0] = 0
	gl.GetIntegerv(vboFreeMemoryATI, &kb[0])
	if gl.GetError() == gl.NO_ERROR && kb[0] > 0 {
		return int(kb[0]) * 1024
	}
	return 0
}

// Close deletes the vertex array.
func (d *GLDevice) Close() {
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}
