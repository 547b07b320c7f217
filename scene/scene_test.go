package scene_test

import (
	"os"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, doc string) (*ecs.World, map[string]ecs.EntityId) {
	t.Helper()
	s, err := scene.Load(strings.NewReader(doc))
	require.NoError(t, err)

	world := ecs.NewWorld()
	t.Cleanup(world.Close)
	ids, err := s.Build(world)
	require.NoError(t, err)
	return world, ids
}

func TestDemoScene(t *testing.T) {
	f, err := os.Open("testdata/demo.yaml")
	require.NoError(t, err)
	defer f.Close()

	s, err := scene.Load(f)
	require.NoError(t, err)

	world := ecs.NewWorld()
	defer world.Close()
	ids, err := s.Build(world)
	require.NoError(t, err)
	storage := world.Storage()

	require.Len(t, ids, 6)

	image, ok := ecs.Get[component.TrackedImage](storage, ids["poster"])
	require.True(t, ok)
	assert.InDelta(t, 0.3, image.PhysicalWidthMeters, 1e-9)

	assert.True(t, ecs.Has[component.IsAnchor](storage, ids["floor"]))
	floor, _ := ecs.Get[component.Position](storage, ids["floor"])
	start, ok := floor.Current()
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0, -1.2, -1.5}, start)

	duck, ok := ecs.Get[component.Anchor](storage, ids["duck"])
	require.True(t, ok)
	assert.Equal(t, component.SingleEntity{ID: ids["poster"]}, duck.Ref)
	scale, ok := ecs.Get[component.Scale](storage, ids["duck"])
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0.5, 0.5, 0.5}, scale.Resolve())
	assert.True(t, ecs.Has[component.GLTFModel](storage, ids["duck"]))

	lamp, _ := ecs.Get[component.Anchor](storage, ids["lamp"])
	assert.Equal(t, component.SplitRef{Position: ids["floor"], Orientation: ids["poster"]}, lamp.Ref)

	marker, _ := ecs.Get[component.Anchor](storage, ids["marker"])
	sources := marker.Sources()
	assert.Equal(t, [3]ecs.EntityId{ids["poster"], ids["floor"], ids["poster"]}, sources.Position)
	assert.Equal(t, ids["floor"], sources.Orientation[3])

	coach, ok := ecs.Get[component.CoachingOverlay](storage, ids["coach"])
	require.True(t, ok)
	assert.Equal(t, []ecs.EntityId{ids["poster"]}, coach.TrackedImages)
	assert.Equal(t, "Point your camera at the poster.", coach.Text)
}

func TestForwardReferences(t *testing.T) {
	world, ids := build(t, `
entities:
  - name: child
    anchor: {entity: parent}
  - name: parent
    is_anchor: true
`)
	anchor, ok := ecs.Get[component.Anchor](world.Storage(), ids["child"])
	require.True(t, ok)
	assert.Equal(t, ids["parent"], anchor.Sources().Position[0])
}

func TestOrientationIsNormalized(t *testing.T) {
	world, ids := build(t, `
entities:
  - name: a
    orientation: [0, 0, 0, 2]
  - name: b
    orientation: [0, 0, 0, 0]
`)
	for _, name := range []string{"a", "b"} {
		o, ok := ecs.Get[component.Orientation](world.Storage(), ids[name])
		require.True(t, ok)
		q, _ := o.Current()
		assert.True(t, q.ApproxEqual(mgl64.QuatIdent()), name)
	}
}

func TestUnnamedEntities(t *testing.T) {
	world, ids := build(t, `
entities:
  - is_anchor: true
  - is_anchor: true
`)
	assert.Empty(t, ids)
	assert.Equal(t, 2, world.Storage().EntityCount())
}

func TestEmptyDocument(t *testing.T) {
	s, err := scene.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Entities)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "entities:\n  - name: a\n    colour: red\n", "colour"},
		{"duplicate name", "entities:\n  - name: a\n  - name: a\n", "duplicate"},
		{"short position", "entities:\n  - name: a\n    position: [1, 2]\n", "position needs 3"},
		{"short orientation", "entities:\n  - name: a\n    orientation: [0, 0, 1]\n", "orientation needs 4"},
		{"two anchor modes", "entities:\n  - name: a\n    anchor: {entity: b, position: b}\n", "exactly one"},
		{"no anchor mode", "entities:\n  - name: a\n    anchor: {}\n", "exactly one"},
		{"too many axes", "entities:\n  - name: a\n    anchor: {axes: {position: [a, a, a, a]}}\n", "at most"},
		{"image without id", "entities:\n  - name: a\n    tracked_image: {width: 1}\n", "needs an image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scene.Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnknownReference(t *testing.T) {
	docs := map[string]string{
		"entity":   "entities:\n  - name: a\n    anchor: {entity: ghost}\n",
		"split":    "entities:\n  - name: a\n    anchor: {orientation: ghost}\n",
		"axes":     "entities:\n  - name: a\n    anchor: {axes: {orientation: ['', ghost]}}\n",
		"coaching": "entities:\n  - name: a\n    coaching_overlay: {images: [ghost]}\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			s, err := scene.Load(strings.NewReader(doc))
			require.NoError(t, err)

			world := ecs.NewWorld()
			defer world.Close()
			_, err = s.Build(world)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `unknown entity "ghost"`)
			assert.Empty(t, ecs.EntitiesWith[component.Anchor](world.Storage()))
			assert.Empty(t, ecs.EntitiesWith[component.CoachingOverlay](world.Storage()))
		})
	}
}
