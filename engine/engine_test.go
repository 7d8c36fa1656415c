package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/game_object"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/instance_manager"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/mesh_group"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/render_pass"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/scene"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	device  *gpu.HeadlessDevice
	surface *gpu.HeadlessSurface
	r       renderer.Renderer
	scene   scene.Scene
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := gpu.NewHeadlessDevice()
	surface := gpu.NewHeadlessSurface(64, 64)
	r, err := renderer.NewRendererWithDevice(d, surface)
	require.NoError(t, err)

	cube, err := mesh.NewMesh("cube", make([]float32, 9), 3)
	require.NoError(t, err)
	_, err = r.CreateMeshGroup("objects", mesh_group.WithMeshes(cube))
	require.NoError(t, err)
	p, err := pipeline.NewPipeline("objects", d, "@vertex fn vs_main() {}")
	require.NoError(t, err)
	require.NoError(t, r.AddPipeline(p))
	l, err := render_pass.NewLayer("opaque", p, r, render_pass.WithLayerMeshGroups("objects"))
	require.NoError(t, err)
	pass, err := render_pass.NewRenderPass("main", render_pass.NewSurfaceDescriptor(d), render_pass.WithLayers(l))
	require.NoError(t, err)
	require.NoError(t, r.AddRenderPass(pass))

	layout, err := d.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{Label: "model data"})
	require.NoError(t, err)
	s := scene.NewScene("test", r, scene.WithPhysicsWorkers(1), scene.WithKind(instance_manager.KindCube, scene.KindBinding{
		MeshGroup: "objects",
		MeshName:  "cube",
		BindGroup: 1,
		Layout:    layout,
	}))
	return &fixture{device: d, surface: surface, r: r, scene: s}
}

func TestRunStopsAfterMaxFrames(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.scene.Add(game_object.NewGameObject("a", instance_manager.KindCube)))
	require.NoError(t, f.scene.Add(game_object.NewGameObject("b", instance_manager.KindCube)))

	prof := profiler.NewProfiler(profiler.WithRegistry(prometheus.NewRegistry()))
	e := NewEngine(f.r, WithScene(0, f.scene), WithMaxFrames(3), WithProfiler(prof), WithProfiling(true))
	rendered := 0
	e.SetRenderCallback(func(float32) { rendered++ })

	require.NoError(t, e.Run())
	assert.Equal(t, 3, rendered)
	assert.Equal(t, 3, f.surface.Presented())
	assert.Len(t, f.device.Draws(), 3)

	expected := `
# HELP oxy_frames_total Number of frames rendered
# TYPE oxy_frames_total counter
oxy_frames_total 3
# HELP oxy_instances Live instances per object kind
# TYPE oxy_instances gauge
oxy_instances{kind="test/Cube"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(prof.Registry(), strings.NewReader(expected), "oxy_frames_total", "oxy_instances"))

	require.NoError(t, e.Release())
	assert.Empty(t, e.Scenes())
}

func TestRunReturnsDeviceError(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(f.r, WithScene(0, f.scene))
	rendered := 0
	e.SetRenderCallback(func(float32) {
		rendered++
		f.device.RaiseError(errors.New("device removed"))
	})

	err := e.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	assert.Equal(t, 1, rendered)
	_ = e.Release()
}

func TestRunRecoversRenderPanic(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(f.r)
	e.SetRenderCallback(func(float32) { panic("boom") })

	err := e.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	_ = e.Release()
}

func TestQuitFromTickCallback(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(f.r, WithTickRate(1000), WithRenderFrameLimit(500))
	ticks := 0
	e.SetTickCallback(func(float32) {
		ticks++
		e.Quit()
	})

	require.NoError(t, e.Run())
	assert.GreaterOrEqual(t, ticks, 1)
	e.Quit()
	_ = e.Release()
}

func TestResizeAppliedBeforeFrame(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(f.r, WithMaxFrames(1))
	e.(*engine).requestResize(100, 50)
	e.(*engine).requestResize(32, 16)

	require.NoError(t, e.Run())
	w, h := f.surface.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)
	_ = e.Release()
}

func TestScenes(t *testing.T) {
	f := newFixture(t)
	e := NewEngine(f.r)
	other := scene.NewScene("overlay", f.r)
	e.AddScene(1, other)
	e.AddScene(0, f.scene)

	assert.Same(t, f.scene, e.Scene(0))
	ordered := e.(*engine).orderedScenes()
	require.Len(t, ordered, 2)
	assert.Equal(t, "test", ordered[0].Name())

	cp := e.Scenes()
	delete(cp, 0)
	assert.Len(t, e.Scenes(), 2)

	e.RemoveScene(1)
	assert.Nil(t, e.Scene(1))
	require.NoError(t, other.Release())
	require.NoError(t, e.Release())

	assert.Panics(t, func() { NewEngine(nil) })
}
