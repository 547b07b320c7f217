// Package anchor places entities relative to other entities' poses and turns
// IsAnchor entities into device-tracked anchors.
//
// An entity with a component.Anchor takes its reference frame from the
// Position and Orientation of the entities its AnchorRef names, one source per
// axis. Every frame the reference is resolved from scratch (live value, then
// start value, then the axis default) and composed with the entity's own
// start pose as a parent-child transform.
package anchor

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
)

// Resolved is the reference frame an AxisSources value points at.
type Resolved struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	// Found is set when at least one source entity is resolvable, that is it
	// has a live or start value for a component the reference reads from it.
	Found bool
	// Complete is set when every named source entity has an authored start
	// value for a component the reference reads from it. A source that only
	// carries a live value does not count.
	Complete bool
}

// Visible reports whether an entity anchored to this frame should be shown.
// Axes that fell back to their default do not hide it; a source entity
// without a start value does.
func (r Resolved) Visible() bool {
	return r.Found && r.Complete
}

type sourceSet struct {
	ids    [component.AxisCount]ecs.EntityId
	ok     [component.AxisCount]bool
	authed [component.AxisCount]bool
	n      int
}

func (s *sourceSet) mark(id ecs.EntityId, ok, authored bool) {
	for i := 0; i < s.n; i++ {
		if s.ids[i] == id {
			s.ok[i] = s.ok[i] || ok
			s.authed[i] = s.authed[i] || authored
			return
		}
	}
	s.ids[s.n] = id
	s.ok[s.n] = ok
	s.authed[s.n] = authored
	s.n++
}

// Resolve looks up every axis of sources in storage. Unset axes and axes whose
// source lacks a value take the default: 0 for position and for the
// orientation's x, y and z, and 1 for its w.
func Resolve(storage *ecs.Storage, sources component.AxisSources) Resolved {
	r := Resolved{Orientation: mgl64.QuatIdent()}
	var set sourceSet

	for axis := component.AxisPX; axis <= component.AxisPZ; axis++ {
		id := sources.At(axis)
		if !id.Valid() {
			continue
		}
		pos := ecs.ReadComponent[component.Position](storage, id)
		v, ok := pos.Current()
		set.mark(id, ok, pos != nil && pos.Start != nil)
		if ok {
			r.Position[axis] = v[axis]
		}
	}

	for axis := component.AxisOX; axis <= component.AxisOW; axis++ {
		id := sources.At(axis)
		if !id.Valid() {
			continue
		}
		ori := ecs.ReadComponent[component.Orientation](storage, id)
		q, ok := ori.Current()
		set.mark(id, ok, ori != nil && ori.Start != nil)
		if !ok {
			continue
		}
		if axis == component.AxisOW {
			r.Orientation.W = q.W
		} else {
			r.Orientation.V[axis-component.AxisOX] = q.V[axis-component.AxisOX]
		}
	}

	r.Complete = set.n > 0
	for i := 0; i < set.n; i++ {
		r.Found = r.Found || set.ok[i]
		r.Complete = r.Complete && set.authed[i]
	}
	return r
}

// Compose places a local pose (ps, qs) in the frame (pa, qa): the local
// position is rotated into the frame and then translated, and the local
// orientation is applied after the frame's. qa is normalized first; a
// degenerate qa counts as identity.
func Compose(pa mgl64.Vec3, qa mgl64.Quat, ps mgl64.Vec3, qs mgl64.Quat) (mgl64.Vec3, mgl64.Quat) {
	if qa.Len() == 0 {
		qa = mgl64.QuatIdent()
	} else {
		qa = qa.Normalize()
	}
	return pa.Add(qa.Rotate(ps)), qa.Mul(qs)
}
