package anchor

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
)

type anchored struct {
	*component.Anchor
	Position    *component.Position    `ecs:"optional"`
	Orientation *component.Orientation `ecs:"optional"`
}

// TransformSystem writes the composed pose of every anchored entity into its
// live Position and Orientation, and its Visibility. Nothing is cached between
// frames, so a source that loses tracking falls back to its start value on the
// very next tick.
//
// Anchored entities are visited in insertion order; an entity anchored to
// another anchored entity sees the pose written earlier in the same tick only
// when its source was added first.
type TransformSystem struct {
	Anchored ecs.Query[anchored]
}

// NewTransformSystem creates the anchor transform system.
func NewTransformSystem() *TransformSystem {
	return &TransformSystem{}
}

func (s *TransformSystem) Execute(frame *ecs.UpdateFrame) {
	for id, e := range s.Anchored.Iter() {
		s.apply(frame.Storage, id, e)
	}
}

func (s *TransformSystem) apply(storage *ecs.Storage, id ecs.EntityId, e anchored) {
	position := e.Position
	if position == nil {
		position = ecs.GetOrAdd[component.Position](storage, id)
	}
	orientation := e.Orientation
	if orientation == nil {
		orientation = ecs.GetOrAdd[component.Orientation](storage, id)
	}
	visibility := ecs.GetOrAdd[component.Visibility](storage, id)

	frameOf := Resolve(storage, e.Sources())
	if !frameOf.Found {
		position.ClearLive()
		orientation.ClearLive()
		visibility.Visible = false
		return
	}

	ps := mgl64.Vec3{}
	if position.Start != nil {
		ps = *position.Start
	}
	qs := mgl64.QuatIdent()
	if orientation.Start != nil {
		qs = *orientation.Start
	}

	p, q := Compose(frameOf.Position, frameOf.Orientation, ps, qs)
	position.SetLive(p)
	orientation.SetLive(q)
	visibility.Visible = frameOf.Visible()
}
