package main

import (
	"fmt"
	"log"

	"voxelcore/internal/allocator"
	"voxelcore/internal/bitfield"
	"voxelcore/internal/config"
	"voxelcore/internal/graphics"
	"voxelcore/internal/graphics/gpu"
	"voxelcore/internal/input"
	"voxelcore/internal/meshing"
	"voxelcore/internal/region"
	"voxelcore/internal/terrain"
	"voxelcore/internal/world"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	windowWidth  = 1280
	windowHeight = 720
)

// viewer holds everything the frame loop touches. Fields marked GL must only
// be used inside mainthread.Call.
type viewer struct {
	cfg config.Engine

	window   *glfw.Window  // GL
	device   *gpu.GLDevice // GL
	shader   *graphics.Shader
	registry *region.Registry

	pool    *meshing.WorkerPool
	manager *terrain.Manager
	input   *input.Manager
	camera  *graphics.Camera
	tracker *region.MoveTracker

	lastCursor [2]float64
	firstMouse bool
}

func setupWindow(fpsLimit int) (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, err
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(windowWidth, windowHeight, "voxelview", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, err
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, err
	}
	log.Printf("voxelview: OpenGL %s", gl.GoStr(gl.GetString(gl.VERSION)))

	// vsync unless the loop paces itself
	if fpsLimit > 0 {
		glfw.SwapInterval(0)
	} else {
		glfw.SwapInterval(1)
	}
	window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	return window, nil
}

// registryConfig converts engine settings into registry capacities, sizing
// unset buffers from the memory dev reports.
func registryConfig(cfg config.Engine, dev gpu.Device) (region.Config, error) {
	policy, err := allocator.ParsePolicy(cfg.Coalesce)
	if err != nil {
		return region.Config{}, err
	}
	def := config.Default()
	vertexBytes := cfg.VertexBudgetBytes
	if vertexBytes == 0 {
		vertexBytes = gpu.Budget(dev, cfg.BudgetFraction*0.6, def.VertexBudgetBytes)
	}
	indexBytes := cfg.IndexBudgetBytes
	if indexBytes == 0 {
		indexBytes = gpu.Budget(dev, cfg.BudgetFraction*0.4, def.IndexBudgetBytes)
	}
	return region.Config{
		MaxLevel:        cfg.MaxRegionLevel,
		CullRange:       cfg.CullRange,
		VertexCapacity:  vertexBytes / meshing.VertexBytes,
		IndexCapacity:   indexBytes / meshing.IndexBytes,
		VertexStride:    meshing.VertexBytes,
		InstanceSlots:   cfg.InstanceSlots,
		CommandCapacity: cfg.CommandCapacity,
		Coalesce:        policy,
	}, nil
}

// newViewer creates the window, GPU objects and streaming engine. It runs on
// the main thread.
func newViewer(cfg config.Engine) (*viewer, error) {
	window, err := setupWindow(cfg.FPSLimit)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	v := &viewer{cfg: cfg, window: window, firstMouse: true}

	v.device = gpu.NewGLDevice()
	rc, err := registryConfig(cfg, v.device)
	if err != nil {
		v.destroy()
		return nil, err
	}
	if v.registry, err = region.New(v.device, rc); err != nil {
		v.destroy()
		return nil, fmt.Errorf("registry: %w", err)
	}
	if v.shader, err = graphics.NewShader(chunkVertexShader, chunkFragmentShader); err != nil {
		v.destroy()
		return nil, fmt.Errorf("chunk shader: %w", err)
	}

	store := world.NewChunkStore(bitfield.NewCache(cfg.BitfieldCacheSlots))
	gen := terrain.FlatGenerator{
		Height:     40,
		Fill:       world.BlockTypeStone,
		Surface:    world.BlockTypeGrass,
		Decoration: world.BlockTypeTallGrass,
		DecorEvery: 7,
	}
	v.pool = meshing.NewWorkerPool(cfg.MeshWorkers, cfg.MeshWorkers*4)
	v.manager = terrain.NewManager(store, gen, v.registry, v.pool, terrain.Options{
		BottomY:         cfg.BottomY,
		TopY:            cfg.TopY,
		PrioritySlots:   cfg.PrioritySlots,
		UploadsPerFrame: cfg.UploadsPerFrame,
		ArchiveLimit:    cfg.ArchiveLimitBytes,
	})

	v.camera = graphics.NewCamera(windowWidth, windowHeight)
	v.camera.Position[1] = float32(gen.Height + 3)
	v.tracker = region.NewMoveTracker(cfg.RedrawDistance, cfg.RedrawAngleDegrees)

	v.input = input.NewManager()
	v.input.Attach(window)
	window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		v.look(x, y)
	})
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		gl.Viewport(0, 0, int32(width), int32(height))
		v.camera.AspectRatio = float32(width) / float32(max(height, 1))
		v.tracker.Force()
	})
	return v, nil
}

const mouseSensitivity = 0.1

func (v *viewer) look(x, y float64) {
	if v.firstMouse {
		v.lastCursor = [2]float64{x, y}
		v.firstMouse = false
		return
	}
	dx := float32(x - v.lastCursor[0])
	dy := float32(v.lastCursor[1] - y)
	v.lastCursor = [2]float64{x, y}
	v.camera.Turn(dx*mouseSensitivity, dy*mouseSensitivity)
}

// destroy releases GL objects. It runs on the main thread after the
// streaming engine has stopped.
func (v *viewer) destroy() {
	if v.shader != nil {
		v.shader.Delete()
	}
	if v.registry != nil {
		v.registry.Close()
	}
	if v.device != nil {
		v.device.Close()
	}
	v.window.Destroy()
	glfw.Terminate()
}
