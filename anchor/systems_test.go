package anchor_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/anchor"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
	"github.com/plus3/arworlds/xr"
	"github.com/plus3/arworlds/xr/simxr"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type arWorld struct {
	*ecs.World
	device  *simxr.Device
	session *xr.Session
}

func newARWorld(t *testing.T, device *simxr.Device, opts ...anchor.Option) *arWorld {
	t.Helper()
	world := ecs.NewWorld()
	t.Cleanup(world.Close)
	component.Register(world.Storage().Registry())

	session := xr.NewSession(device)
	opts = append([]anchor.Option{anchor.WithLogger(zerolog.New(zerolog.NewTestWriter(t)))}, opts...)
	world.AddSystem(session)
	world.AddSystem(anchor.NewCreationSystem(session, opts...))
	world.AddSystem(anchor.NewTransformSystem())
	return &arWorld{World: world, device: device, session: session}
}

func (w *arWorld) spawn(components ...any) ecs.EntityId {
	id := w.CreateEntity()
	for _, c := range components {
		w.AddComponent(id, c)
	}
	return id
}

func (w *arWorld) position(t *testing.T, id ecs.EntityId) *component.Position {
	t.Helper()
	pos, ok := ecs.Get[component.Position](w.Storage(), id)
	require.True(t, ok)
	return pos
}

func (w *arWorld) visible(t *testing.T, id ecs.EntityId) bool {
	t.Helper()
	vis, ok := ecs.Get[component.Visibility](w.Storage(), id)
	require.True(t, ok)
	return vis.Visible
}

func TestTrackedAnchorDrivesAnchoredEntity(t *testing.T) {
	w := newARWorld(t, simxr.New())

	a := w.spawn(
		component.IsAnchor{},
		component.NewPosition(0, 0, -1),
		component.NewOrientation(mgl64.QuatIdent()),
	)
	b := w.spawn(
		component.AnchorTo(a),
		component.NewPosition(0, 0, 0),
		component.NewOrientation(mgl64.QuatIdent()),
	)

	require.NoError(t, w.session.Start(context.Background()))
	_, anchorsEnabled := w.device.Session().Config().Option(xr.FeatureAnchors)
	require.True(t, anchorsEnabled)

	w.Step(0)
	w.WaitAsync()

	anchors := w.device.Session().Anchors()
	require.Len(t, anchors, 1)
	w.device.Session().SetAnchorPose(anchors[0], xr.Pose{
		Position:    mgl64.Vec3{2, 0, -1},
		Orientation: mgl64.QuatIdent(),
	})

	w.Step(0)

	require.NotNil(t, w.position(t, a).Live)
	assertVec(t, mgl64.Vec3{2, 0, -1}, *w.position(t, a).Live)
	require.NotNil(t, w.position(t, b).Live)
	assertVec(t, mgl64.Vec3{2, 0, -1}, *w.position(t, b).Live)
	assert.True(t, w.visible(t, b))

	t.Run("lost tracking falls back to start values", func(t *testing.T) {
		w.device.Session().LoseAnchor(anchors[0])
		w.Step(0)

		assert.Nil(t, w.position(t, a).Live)
		require.NotNil(t, w.position(t, b).Live)
		assertVec(t, mgl64.Vec3{0, 0, -1}, *w.position(t, b).Live)
		assert.True(t, w.visible(t, b))
	})

	t.Run("only one device anchor is created", func(t *testing.T) {
		w.Step(0)
		w.WaitAsync()
		assert.Len(t, w.device.Session().Anchors(), 1)
	})
}

func TestAnchorCreationWithPartialPose(t *testing.T) {
	w := newARWorld(t, simxr.New())
	positioned := w.spawn(component.IsAnchor{}, component.NewPosition(1, 2, 3))
	bare := w.spawn(component.IsAnchor{})
	require.NoError(t, w.session.Start(context.Background()))

	w.Step(0)
	w.WaitAsync()
	w.Step(0)

	anchors := w.device.Session().Anchors()
	require.Len(t, anchors, 2)

	live := w.position(t, positioned).Live
	require.NotNil(t, live)
	assertVec(t, mgl64.Vec3{1, 2, 3}, *live)
	assert.False(t, ecs.Has[component.Orientation](w.Storage(), positioned))

	for _, id := range []ecs.EntityId{positioned, bare} {
		state, ok := ecs.Get[anchor.CreateState](w.Storage(), id)
		require.True(t, ok)
		assert.Equal(t, loader.Loaded, state.Anchor.State())
	}
	assert.False(t, ecs.Has[component.Position](w.Storage(), bare))

	for _, a := range anchors {
		w.device.Session().SetAnchorPose(a, xr.Pose{Position: mgl64.Vec3{4, 0, 0}, Orientation: mgl64.QuatIdent()})
	}
	w.Step(0)
	assertVec(t, mgl64.Vec3{4, 0, 0}, *w.position(t, positioned).Live)
}

func TestAnchorCreationIsGuarded(t *testing.T) {
	w := newARWorld(t, simxr.New(simxr.WithAnchorLatency(200*time.Millisecond)))
	a := w.spawn(
		component.IsAnchor{},
		component.NewPosition(1, 0, 0),
		component.NewOrientation(mgl64.QuatIdent()),
	)
	require.NoError(t, w.session.Start(context.Background()))

	w.Step(0)
	w.Step(0)

	state, ok := ecs.Get[anchor.CreateState](w.Storage(), a)
	require.True(t, ok)
	assert.True(t, state.Anchor.IsLoading())

	w.WaitAsync()
	w.Step(0)

	assert.Len(t, w.device.Session().Anchors(), 1)
	assert.Equal(t, 1, state.Anchor.Attempts())
	assert.Equal(t, loader.Loaded, state.Anchor.State())
}

func TestAnchorCreationFailure(t *testing.T) {
	rejected := eris.New("anchor limit reached")
	w := newARWorld(t, simxr.New(simxr.WithAnchorError(rejected)), anchor.WithRetry(loader.NoRetry()))

	a := w.spawn(
		component.IsAnchor{},
		component.NewPosition(0, 0, -1),
		component.NewOrientation(mgl64.QuatIdent()),
	)
	b := w.spawn(component.AnchorTo(a), component.NewPosition(0, 1, 0))
	require.NoError(t, w.session.Start(context.Background()))

	for i := 0; i < 3; i++ {
		w.Step(0)
		w.WaitAsync()
	}

	state, ok := ecs.Get[anchor.CreateState](w.Storage(), a)
	require.True(t, ok)
	assert.Equal(t, loader.Failed, state.Anchor.State())
	assert.True(t, eris.Is(state.Anchor.Err(), rejected))
	assert.Equal(t, 1, state.Anchor.Attempts())

	assert.Nil(t, w.position(t, a).Live)
	assertVec(t, mgl64.Vec3{0, 1, -1}, *w.position(t, b).Live)
	assert.True(t, w.visible(t, b))
}

func TestNoAnchorsBeforeSessionStarts(t *testing.T) {
	w := newARWorld(t, simxr.New())
	w.spawn(
		component.IsAnchor{},
		component.NewPosition(0, 0, -1),
		component.NewOrientation(mgl64.QuatIdent()),
	)

	w.Step(0)
	w.WaitAsync()
	w.Step(0)

	assert.Nil(t, w.device.Session())
	assert.Empty(t, ecs.EntitiesWith[anchor.CreateState](w.Storage()))
}

func TestTransformSystem(t *testing.T) {
	newWorld := func(t *testing.T) *ecs.World {
		world := ecs.NewWorld()
		t.Cleanup(world.Close)
		component.Register(world.Storage().Registry())
		world.AddSystem(anchor.NewTransformSystem())
		return world
	}

	t.Run("unresolvable anchor hides and clears live values", func(t *testing.T) {
		world := newWorld(t)
		storage := world.Storage()

		id := storage.Spawn(component.AnchorTo(ecs.EntityId(42)), component.NewPosition(0, 0, 0))
		pos, _ := ecs.Get[component.Position](storage, id)
		pos.SetLive(mgl64.Vec3{9, 9, 9})

		world.Step(0)

		assert.Nil(t, pos.Live)
		vis, ok := ecs.Get[component.Visibility](storage, id)
		require.True(t, ok)
		assert.False(t, vis.Visible)
	})

	t.Run("missing pose components are added", func(t *testing.T) {
		world := newWorld(t)
		storage := world.Storage()

		source := storage.Spawn(component.NewPosition(1, 2, 3))
		id := storage.Spawn(component.AnchorTo(source))

		world.Step(0)

		pos, ok := ecs.Get[component.Position](storage, id)
		require.True(t, ok)
		assertVec(t, mgl64.Vec3{1, 2, 3}, *pos.Live)
		ori, ok := ecs.Get[component.Orientation](storage, id)
		require.True(t, ok)
		assertQuat(t, mgl64.QuatIdent(), *ori.Live)
	})

	t.Run("repeated updates are idempotent", func(t *testing.T) {
		world := newWorld(t)
		storage := world.Storage()

		source := storage.Spawn(component.NewPosition(1, 0, 0), component.NewOrientation(mgl64.QuatIdent()))
		srcPos, _ := ecs.Get[component.Position](storage, source)
		srcPos.SetLive(mgl64.Vec3{3, 0, 0})
		id := storage.Spawn(component.AnchorTo(source), component.NewPosition(0, 0, 1))

		snapshot := func() (mgl64.Vec3, mgl64.Quat, bool) {
			pos, _ := ecs.Get[component.Position](storage, id)
			ori, _ := ecs.Get[component.Orientation](storage, id)
			vis, _ := ecs.Get[component.Visibility](storage, id)
			return *pos.Live, *ori.Live, vis.Visible
		}

		world.Step(0)
		p1, q1, v1 := snapshot()
		world.Step(0)
		p2, q2, v2 := snapshot()

		assert.Equal(t, p1, p2)
		assert.Equal(t, q1, q2)
		assert.Equal(t, v1, v2)
		assertVec(t, mgl64.Vec3{3, 0, 1}, p2)
	})
}
