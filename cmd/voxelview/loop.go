package main

import (
	"log"
	"math"
	"time"

	"voxelcore/internal/config"
	"voxelcore/internal/input"
	"voxelcore/internal/physics"
	"voxelcore/internal/profiling"
	"voxelcore/internal/terrain"
	"voxelcore/internal/world"

	"github.com/faiface/mainthread"
	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	flySpeed  = 20.0 // blocks per second
	fastScale = 4.0
)

var skyColor = mgl32.Vec3{0.55, 0.7, 0.9}

// frameResult carries requests that must be handled off the main thread.
type frameResult struct {
	quit   bool
	reload bool
}

// run drives the viewer from the mainthread.Run goroutine. GL work happens
// inside mainthread.Call; loading is started from here so joining the
// previous load worker never blocks rendering.
func run(cfg config.Engine) error {
	var v *viewer
	var err error
	mainthread.Call(func() { v, err = newViewer(cfg) })
	if err != nil {
		return err
	}
	defer func() {
		v.manager.Close()
		v.pool.Stop()
		mainthread.Call(v.destroy)
	}()

	center := v.column()
	v.manager.LoadRegion(center, config.GetChunkLoadRadius())

	frames := 0
	lastFPS := time.Now()
	lastTime := time.Now()
	var drawn uint64
	showStats := false
	limiter := newFPSLimiter(cfg.FPSLimit)

	for {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		var res frameResult
		mainthread.Call(func() {
			res = v.frame(dt, &drawn)
			if v.input.JustPressed(input.ActionToggleStats) {
				showStats = !showStats
			}
			v.input.PostUpdate()
		})
		if res.quit {
			return nil
		}
		frames++
		limiter.Wait()

		if col := v.column(); col != center || res.reload {
			center = col
			v.manager.LoadRegion(center, config.GetChunkLoadRadius())
			if n := v.manager.UnloadOutside(center, config.GetChunkEvictRadius()); n > 0 {
				log.Printf("voxelview: unloading %d chunks", n)
			}
		}

		if time.Since(lastFPS) >= time.Second {
			log.Printf("FPS: %d draws: %d", frames, v.registry.DrawCount())
			if showStats {
				s := v.registry.Stats()
				log.Printf("regions %d leaves %d vertices %d/%d (%d frags) indices %d/%d (%d frags)",
					s.Regions, s.Leaves, s.VertexUsed, s.VertexCapacity, s.VertexFragments,
					s.IndexUsed, s.IndexCapacity, s.IndexFragments)
				log.Printf("uploads pending %d unloads pending %d\n%s\n%s",
					v.manager.Meshes().PendingUploads(), v.manager.PendingUnloads(),
					profiling.TopN(5), profiling.Counters())
			}
			frames = 0
			lastFPS = time.Now()
		}
	}
}

// column returns the chunk column under the camera.
func (v *viewer) column() terrain.Column {
	p := v.camera.Position
	return terrain.Column{
		X: world.FloorDiv(int(math.Floor(float64(p[0]))), world.ChunkSize),
		Z: world.FloorDiv(int(math.Floor(float64(p[2]))), world.ChunkSize),
	}
}

// frame polls input, applies streaming results and renders. It runs on the
// main thread. drawn is the registry version the current draw list was
// built from.
func (v *viewer) frame(dt float64, drawn *uint64) frameResult {
	profiling.ResetFrame()
	func() { defer profiling.Track("glfw.PollEvents")(); glfw.PollEvents() }()

	if v.window.ShouldClose() || v.input.JustPressed(input.ActionQuit) {
		return frameResult{quit: true}
	}
	v.move(float32(dt))

	if v.input.JustPressed(input.ActionToggleWireframe) {
		config.ToggleWireframe()
	}
	if v.input.JustPressed(input.ActionPlaceBlock) {
		v.edit(world.BlockTypeStone)
	}
	if v.input.JustPressed(input.ActionBreakBlock) {
		v.edit(world.BlockTypeAir)
	}

	func() { defer profiling.Track("terrain.Update")(); v.manager.Update() }()

	moved := v.tracker.Moved(v.camera.Position, v.camera.Front())
	if version := v.registry.Version(); moved || version != *drawn {
		f := v.camera.Frustum()
		f.Margin = v.cfg.RedrawDistance
		v.registry.UpdateDrawCalls(v.camera.Position, f)
		*drawn = version
	}

	v.render()
	func() { defer profiling.Track("glfw.SwapBuffers")(); v.window.SwapBuffers() }()
	return frameResult{reload: v.input.JustPressed(input.ActionReload)}
}

func (v *viewer) move(dt float32) {
	var dir mgl32.Vec3
	front, right := v.camera.Front(), v.camera.Right()
	if v.input.IsActive(input.ActionMoveForward) {
		dir = dir.Add(front)
	}
	if v.input.IsActive(input.ActionMoveBackward) {
		dir = dir.Sub(front)
	}
	if v.input.IsActive(input.ActionMoveRight) {
		dir = dir.Add(right)
	}
	if v.input.IsActive(input.ActionMoveLeft) {
		dir = dir.Sub(right)
	}
	if v.input.IsActive(input.ActionMoveUp) {
		dir[1]++
	}
	if v.input.IsActive(input.ActionMoveDown) {
		dir[1]--
	}
	if dir.Len() == 0 {
		return
	}
	speed := float32(flySpeed)
	if v.input.IsActive(input.ActionFast) {
		speed *= fastScale
	}
	v.camera.Position = v.camera.Position.Add(dir.Normalize().Mul(speed * dt))
}

// edit places t against the block under the crosshair, or breaks that block
// when t is air.
func (v *viewer) edit(t world.BlockType) {
	hit := physics.Raycast(v.camera.Position, v.camera.Front(),
		physics.MinReachDistance, physics.MaxReachDistance, v.manager.Store())
	if !hit.Hit {
		return
	}
	p := hit.HitPosition
	if t != world.BlockTypeAir {
		p = hit.AdjacentPosition
	}
	v.manager.SetBlock(p[0], p[1], p[2], t)
}

func (v *viewer) render() {
	defer profiling.Track("render.Chunks")()
	gl.ClearColor(skyColor[0], skyColor[1], skyColor[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	wireframe := config.GetWireframe()
	if wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
	v.shader.Use()
	v.shader.SetMatrix4("uProjection", v.camera.GetProjectionMatrix())
	v.shader.SetMatrix4("uView", v.camera.GetViewMatrix())
	v.shader.SetBool("uWireframe", wireframe)
	v.shader.SetVector3("uFogColor", skyColor)
	v.shader.SetFloat("uFogEnd", float32(config.GetRenderDistance()*world.ChunkSize))
	v.registry.Draw()
}
