// Package config loads engine configuration and holds runtime settings.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Engine is the static engine configuration, read once at startup.
type Engine struct {
	MaxRegionLevel int `yaml:"max_region_level"`
	CullRange      int `yaml:"cull_range"`

	// Buffer sizes in bytes. Zero sizes the buffer from BudgetFraction of
	// the memory the device reports.
	VertexBudgetBytes int     `yaml:"vertex_budget_bytes"`
	IndexBudgetBytes  int     `yaml:"index_budget_bytes"`
	BudgetFraction    float64 `yaml:"budget_fraction"`
	InstanceSlots     int     `yaml:"instance_slots"`
	CommandCapacity   int     `yaml:"command_capacity"`
	Coalesce          string  `yaml:"coalesce"`

	MeshWorkers     int `yaml:"mesh_workers"`
	UploadsPerFrame int `yaml:"uploads_per_frame"`
	RenderDistance  int `yaml:"render_distance"`
	BottomY         int `yaml:"bottom_y"`
	TopY            int `yaml:"top_y"`
	PrioritySlots   int `yaml:"priority_slots"`

	BitfieldCacheSlots int `yaml:"bitfield_cache_slots"`
	ArchiveLimitBytes  int `yaml:"archive_limit_bytes"`

	RedrawAngleDegrees float32 `yaml:"redraw_angle_degrees"`
	RedrawDistance     float32 `yaml:"redraw_distance"`

	// Frames per second cap for the viewer. Zero follows vsync.
	FPSLimit int `yaml:"fps_limit"`
}

// Default returns the stock configuration.
func Default() Engine {
	return Engine{
		MaxRegionLevel:     5,
		CullRange:          1,
		VertexBudgetBytes:  64 << 20,
		IndexBudgetBytes:   48 << 20,
		BudgetFraction:     0.4,
		InstanceSlots:      1 << 14,
		CommandCapacity:    1 << 14,
		Coalesce:           "neighbors",
		MeshWorkers:        max(runtime.NumCPU()-1, 1),
		UploadsPerFrame:    10,
		RenderDistance:     8,
		BottomY:            -3,
		TopY:               3,
		PrioritySlots:      8,
		BitfieldCacheSlots: 2048,
		ArchiveLimitBytes:  256 << 20,
		RedrawAngleDegrees: 5,
		RedrawDistance:     8,
	}
}

// Load reads path over the defaults and normalizes the result.
func Load(path string) (Engine, error) {
	e := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("config %s: %w", path, err)
	}
	e.Normalize()
	return e, nil
}

// Normalize replaces out-of-range values with defaults or clamps them.
func (e *Engine) Normalize() {
	def := Default()
	e.MaxRegionLevel = clamp(e.MaxRegionLevel, 1, 8)
	e.CullRange = clamp(e.CullRange, 0, 4)
	if e.VertexBudgetBytes < 0 {
		e.VertexBudgetBytes = 0
	}
	if e.IndexBudgetBytes < 0 {
		e.IndexBudgetBytes = 0
	}
	if e.BudgetFraction <= 0 || e.BudgetFraction > 1 {
		e.BudgetFraction = def.BudgetFraction
	}
	if e.InstanceSlots <= 0 {
		e.InstanceSlots = def.InstanceSlots
	}
	if e.CommandCapacity <= 0 {
		e.CommandCapacity = def.CommandCapacity
	}
	if e.Coalesce != "none" {
		e.Coalesce = "neighbors"
	}
	if e.MeshWorkers <= 0 {
		e.MeshWorkers = def.MeshWorkers
	}
	if e.UploadsPerFrame <= 0 {
		e.UploadsPerFrame = def.UploadsPerFrame
	}
	e.RenderDistance = clamp(e.RenderDistance, minRenderDistance, maxRenderDistance)
	if e.TopY < e.BottomY {
		e.BottomY, e.TopY = e.TopY, e.BottomY
	}
	if e.PrioritySlots <= 0 {
		e.PrioritySlots = def.PrioritySlots
	}
	if e.BitfieldCacheSlots <= 0 {
		e.BitfieldCacheSlots = def.BitfieldCacheSlots
	}
	if e.ArchiveLimitBytes < 0 {
		e.ArchiveLimitBytes = 0
	}
	if e.RedrawAngleDegrees <= 0 {
		e.RedrawAngleDegrees = def.RedrawAngleDegrees
	}
	if e.RedrawDistance <= 0 {
		e.RedrawDistance = def.RedrawDistance
	}
	if e.FPSLimit < 0 {
		e.FPSLimit = 0
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
