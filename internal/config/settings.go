package config

import "sync"

const (
	minRenderDistance = 1
	maxRenderDistance = 48
)

// Settings holds values that may change while the engine runs.
type Settings struct {
	mu             sync.RWMutex
	renderDistance int // in chunks
	wireframe      bool
}

var globalSettings = &Settings{
	renderDistance: Default().RenderDistance,
}

// Apply copies the runtime-adjustable fields of e into the global settings.
func Apply(e Engine) {
	SetRenderDistance(e.RenderDistance)
}

// GetRenderDistance returns the current render distance in chunks
func GetRenderDistance() int {
	globalSettings.mu.RLock()
	defer globalSettings.mu.RUnlock()
	return globalSettings.renderDistance
}

// SetRenderDistance sets the render distance in chunks
func SetRenderDistance(distance int) {
	globalSettings.mu.Lock()
	defer globalSettings.mu.Unlock()
	globalSettings.renderDistance = clamp(distance, minRenderDistance, maxRenderDistance)
}

// GetChunkLoadRadius returns the radius loaded around the viewer.
func GetChunkLoadRadius() int {
	return GetRenderDistance()
}

// GetChunkEvictRadius returns the radius beyond which chunks are unloaded.
// It leaves a margin so that walking back and forth does not thrash.
func GetChunkEvictRadius() int {
	return GetRenderDistance() + 2
}

// GetWireframe reports whether chunks are drawn as lines.
func GetWireframe() bool {
	globalSettings.mu.RLock()
	defer globalSettings.mu.RUnlock()
	return globalSettings.wireframe
}

// ToggleWireframe flips wireframe drawing and returns the new state.
func ToggleWireframe() bool {
	globalSettings.mu.Lock()
	defer globalSettings.mu.Unlock()
	globalSettings.wireframe = !globalSettings.wireframe
	return globalSettings.wireframe
}
