package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	data := []byte("max_region_level: 4\ncull_range: 2\ncoalesce: none\nuploads_per_frame: 3\nbottom_y: 2\ntop_y: -1\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if e.MaxRegionLevel != 4 || e.CullRange != 2 || e.Coalesce != "none" || e.UploadsPerFrame != 3 {
		t.Fatalf("overrides not applied: %+v", e)
	}
	if e.BottomY != -1 || e.TopY != 2 {
		t.Fatalf("inverted column range not fixed: %d..%d", e.BottomY, e.TopY)
	}
	if e.PrioritySlots != Default().PrioritySlots || e.BudgetFraction != 0.4 {
		t.Fatalf("defaults lost: %+v", e)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("max_region_level: [1, 2"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestNormalize(t *testing.T) {
	e := Engine{MaxRegionLevel: 40, CullRange: -1, BudgetFraction: 7, Coalesce: "weird", RenderDistance: 1000, FPSLimit: -5}
	e.Normalize()
	if e.MaxRegionLevel != 8 || e.CullRange != 0 {
		t.Fatalf("levels not clamped: %+v", e)
	}
	if e.BudgetFraction != 0.4 || e.Coalesce != "neighbors" || e.RenderDistance != maxRenderDistance {
		t.Fatalf("fields not normalized: %+v", e)
	}
	if e.FPSLimit != 0 {
		t.Fatalf("negative fps limit kept: %d", e.FPSLimit)
	}
	if e.MeshWorkers < 1 || e.InstanceSlots <= 0 || e.CommandCapacity <= 0 {
		t.Fatalf("zero fields not defaulted: %+v", e)
	}
}

func TestRenderDistanceClamped(t *testing.T) {
	old := GetRenderDistance()
	defer SetRenderDistance(old)

	SetRenderDistance(0)
	if got := GetRenderDistance(); got != minRenderDistance {
		t.Fatalf("GetRenderDistance = %d, want %d", got, minRenderDistance)
	}
	SetRenderDistance(12)
	if GetChunkLoadRadius() != 12 || GetChunkEvictRadius() != 14 {
		t.Fatalf("radii %d/%d", GetChunkLoadRadius(), GetChunkEvictRadius())
	}
	Apply(Engine{RenderDistance: 500})
	if GetRenderDistance() != maxRenderDistance {
		t.Fatal("Apply did not clamp")
	}
}

func TestToggleWireframe(t *testing.T) {
	start := GetWireframe()
	if ToggleWireframe() == start || GetWireframe() == start {
		t.Fatal("toggle did not flip")
	}
	ToggleWireframe()
}
