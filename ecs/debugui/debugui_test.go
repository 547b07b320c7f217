package debugui_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/anchor"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/ecs/debugui"
	"github.com/plus3/arworlds/loader"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorld(t *testing.T) *ecs.World {
	t.Helper()
	world := ecs.NewWorld()
	t.Cleanup(world.Close)
	component.Register(world.Storage().Registry())
	return world
}

func TestCollectEntities(t *testing.T) {
	world := newWorld(t)
	storage := world.Storage()

	a := storage.Spawn(component.NewPosition(0, 0, -1), component.IsAnchor{})
	b := storage.Spawn(component.AnchorTo(a))

	entities := debugui.CollectEntities(storage)
	require.Len(t, entities, 2)
	assert.Equal(t, a, entities[0].ID)
	assert.Equal(t, []string{"component.Position", "component.IsAnchor"}, entities[0].ComponentTypes)
	assert.Equal(t, b, entities[1].ID)
	assert.Equal(t, 1, entities[1].ComponentCount)
}

func TestMatchEntities(t *testing.T) {
	world := newWorld(t)
	storage := world.Storage()

	a := storage.Spawn(component.NewPosition(0, 0, 0), component.IsAnchor{})
	storage.Spawn(component.NewPosition(1, 0, 0))
	c := storage.Spawn(component.IsAnchor{}, component.NewPosition(2, 0, 0))

	types := []reflect.Type{reflect.TypeFor[component.Position](), reflect.TypeFor[component.IsAnchor]()}
	assert.Equal(t, []ecs.EntityId{a, c}, debugui.MatchEntities(storage, types))
	assert.Nil(t, debugui.MatchEntities(storage, nil))
}

func TestQueryDebuggerSelection(t *testing.T) {
	world := newWorld(t)
	storage := world.Storage()
	storage.Spawn(component.NewPosition(0, 0, 0), component.IsAnchor{})

	qd := debugui.NewQueryDebuggerComponent()
	assert.Empty(t, qd.SelectedTypes(storage))

	qd.Select("component.IsAnchor")
	qd.Select("component.Missing")
	assert.Equal(t, []reflect.Type{reflect.TypeFor[component.IsAnchor]()}, qd.SelectedTypes(storage))
}

func TestCollectAnchors(t *testing.T) {
	world := newWorld(t)
	storage := world.Storage()
	world.AddSystem(anchor.NewTransformSystem())

	a := storage.Spawn(component.NewPosition(0, 0, -1))
	b := storage.Spawn(component.AnchorTo(a), component.NewPosition(0, 1, 0))
	ghost := storage.Spawn(component.AnchorTo(999))
	world.Step(0)

	rows := debugui.CollectAnchors(storage)
	require.Len(t, rows, 2)

	assert.Equal(t, b, rows[0].ID)
	assert.True(t, rows[0].Frame.Found)
	assert.True(t, rows[0].Visible)
	assert.InDelta(t, 1.0, rows[0].Position.Y(), 1e-9)
	assert.InDelta(t, -1.0, rows[0].Position.Z(), 1e-9)
	assert.False(t, rows[0].Tracked)

	assert.Equal(t, ghost, rows[1].ID)
	assert.False(t, rows[1].Frame.Found)
	assert.False(t, rows[1].Visible)
}

type bitmapState struct {
	Bitmap loader.Slot[[]byte]
	Label  string
}

type pollSystem struct {
	loader *loader.Loader[[]byte]
}

func (s *pollSystem) Execute(frame *ecs.UpdateFrame) {
	for _, id := range ecs.EntitiesWith[string](frame.Storage) {
		s.loader.Poll(frame, id, loader.In(id, func(s *bitmapState) *loader.Slot[[]byte] { return &s.Bitmap }),
			func(ctx context.Context) ([]byte, error) { return nil, errors.New("gateway timeout") })
	}
}

func TestCollectLoads(t *testing.T) {
	world := newWorld(t)
	storage := world.Storage()

	l := loader.New[[]byte]("bitmap", zerolog.Nop())
	l.Retry = loader.NoRetry()
	world.AddSystem(&pollSystem{loader: l})

	id := world.CreateEntity()
	ecs.Set(storage, id, "poster")
	world.Step(0)
	world.WaitAsync()
	world.Step(0)

	rows := debugui.CollectLoads(storage)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, "bitmapState.Bitmap", rows[0].Slot)
	assert.Equal(t, loader.Failed, rows[0].State)
	assert.Equal(t, 1, rows[0].Attempts)
	assert.EqualError(t, rows[0].Err, "gateway timeout")

	state := ecs.ReadComponent[bitmapState](storage, id)
	require.NotNil(t, state)
	assert.Equal(t, "failed, 1 attempts: gateway timeout", debugui.DescribeComponent(state)[0].Text)
}

func TestDescribeComponent(t *testing.T) {
	live := mgl64.Vec3{1, 0, 0}
	tests := []struct {
		name      string
		component any
		want      []debugui.FieldView
	}{
		{
			name:      "tag",
			component: component.IsAnchor{},
			want:      []debugui.FieldView{},
		},
		{
			name:      "start without live",
			component: component.NewPosition(0, 1, -2),
			want: []debugui.FieldView{
				{Name: "Start", Text: "(0.000, 1.000, -2.000)", Editable: true},
				{Name: "Live", Text: "unset"},
			},
		},
		{
			name:      "live pointer",
			component: &component.Position{Live: &live},
			want: []debugui.FieldView{
				{Name: "Start", Text: "unset"},
				{Name: "Live", Text: "(1.000, 0.000, 0.000)", Editable: true},
			},
		},
		{
			name:      "orientation",
			component: component.NewOrientation(mgl64.QuatIdent()),
			want: []debugui.FieldView{
				{Name: "Start", Text: "(0.000, 0.000, 0.000 | 1.000)"},
				{Name: "Live", Text: "unset"},
			},
		},
		{
			name:      "split anchor",
			component: component.Anchor{Ref: component.SplitRef{Position: 3, Orientation: 4}},
			want:      []debugui.FieldView{{Name: "Ref", Text: "position #3, orientation #4"}},
		},
		{
			name:      "anchor without ref",
			component: component.Anchor{},
			want:      []debugui.FieldView{{Name: "Ref", Text: "none"}},
		},
		{
			name:      "coaching overlay",
			component: component.CoachingOverlay{TrackedImages: []ecs.EntityId{1, 2}, Text: "look around"},
			want: []debugui.FieldView{
				{Name: "TrackedImages", Text: "#1, #2"},
				{Name: "Text", Text: `"look around"`, Editable: true},
			},
		},
		{
			name:      "tracked image",
			component: component.TrackedImage{Image: "bafkreipicture", PhysicalWidthMeters: 0.3},
			want: []debugui.FieldView{
				{Name: "Image", Text: "bafkreipicture"},
				{Name: "PhysicalWidthMeters", Text: "0.300", Editable: true},
			},
		},
		{
			name:      "idle slot",
			component: bitmapState{Label: "poster"},
			want: []debugui.FieldView{
				{Name: "Bitmap", Text: "idle, 0 attempts"},
				{Name: "Label", Text: `"poster"`, Editable: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, debugui.DescribeComponent(tt.component))
		})
	}
}
