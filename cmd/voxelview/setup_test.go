package main

import (
	"testing"

	"voxelcore/internal/allocator"
	"voxelcore/internal/config"
	"voxelcore/internal/graphics/gpu"
	"voxelcore/internal/meshing"
)

func TestRegistryConfigExplicitBudgets(t *testing.T) {
	cfg := config.Default()
	cfg.VertexBudgetBytes = 800
	cfg.IndexBudgetBytes = 400
	cfg.Coalesce = "none"
	rc, err := registryConfig(cfg, gpu.NewMemoryDevice(0))
	if err != nil {
		t.Fatal(err)
	}
	if rc.VertexCapacity != 100 || rc.IndexCapacity != 100 {
		t.Fatalf("capacities %d/%d, want 100/100", rc.VertexCapacity, rc.IndexCapacity)
	}
	if rc.VertexStride != meshing.VertexBytes || rc.Coalesce != allocator.CoalesceNone {
		t.Fatalf("config %+v", rc)
	}
}

func TestRegistryConfigFromDeviceMemory(t *testing.T) {
	cfg := config.Default()
	cfg.VertexBudgetBytes = 0
	cfg.IndexBudgetBytes = 0
	cfg.BudgetFraction = 1

	rc, err := registryConfig(cfg, gpu.NewMemoryDevice(1000*1000))
	if err != nil {
		t.Fatal(err)
	}
	if want := 600 * 1000 / meshing.VertexBytes; rc.VertexCapacity != want {
		t.Fatalf("vertex capacity %d, want %d", rc.VertexCapacity, want)
	}
	if want := 400 * 1000 / meshing.IndexBytes; rc.IndexCapacity != want {
		t.Fatalf("index capacity %d, want %d", rc.IndexCapacity, want)
	}

	// unknown memory falls back to the default byte budgets
	rc, _ = registryConfig(cfg, gpu.NewMemoryDevice(0))
	if want := config.Default().VertexBudgetBytes / meshing.VertexBytes; rc.VertexCapacity != want {
		t.Fatalf("fallback vertex capacity %d, want %d", rc.VertexCapacity, want)
	}
}
