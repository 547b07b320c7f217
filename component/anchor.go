package component

import "github.com/plus3/arworlds/ecs"

// IsAnchor marks an entity whose start pose should become a device anchor.
type IsAnchor struct{}

// Axis sources index the seven scalar axes of a pose.
const (
	AxisPX = iota
	AxisPY
	AxisPZ
	AxisOX
	AxisOY
	AxisOZ
	AxisOW
	AxisCount
)

// AxisSources names, for each position axis (x, y, z) and orientation axis
// (x, y, z, w), the entity supplying its value. NoEntity leaves the axis unset.
type AxisSources struct {
	Position    [3]ecs.EntityId
	Orientation [4]ecs.EntityId
}

// At returns the source of an axis in AxisPX..AxisOW order.
func (a AxisSources) At(axis int) ecs.EntityId {
	if axis < 3 {
		return a.Position[axis]
	}
	return a.Orientation[axis-3]
}

// Any reports whether at least one axis has a source.
func (a AxisSources) Any() bool {
	for axis := 0; axis < AxisCount; axis++ {
		if a.At(axis).Valid() {
			return true
		}
	}
	return false
}

// AnchorRef is one of SingleEntity, SplitRef or PerAxis.
type AnchorRef interface {
	Sources() AxisSources
	anchorRef()
}

// SingleEntity reuses one entity's position and orientation for every axis.
type SingleEntity struct {
	ID ecs.EntityId
}

func (r SingleEntity) Sources() AxisSources {
	return AxisSources{
		Position:    [3]ecs.EntityId{r.ID, r.ID, r.ID},
		Orientation: [4]ecs.EntityId{r.ID, r.ID, r.ID, r.ID},
	}
}

func (SingleEntity) anchorRef() {}

// SplitRef takes every position axis from one entity and every orientation
// axis from another. Either may be NoEntity.
type SplitRef struct {
	Position    ecs.EntityId
	Orientation ecs.EntityId
}

func (r SplitRef) Sources() AxisSources {
	return AxisSources{
		Position:    [3]ecs.EntityId{r.Position, r.Position, r.Position},
		Orientation: [4]ecs.EntityId{r.Orientation, r.Orientation, r.Orientation, r.Orientation},
	}
}

func (SplitRef) anchorRef() {}

// PerAxis names an independent source for each axis.
type PerAxis AxisSources

func (r PerAxis) Sources() AxisSources {
	return AxisSources(r)
}

func (PerAxis) anchorRef() {}

// Anchor places its entity relative to other entities' poses. It is a lookup
// relationship resolved every frame and never implies ownership.
type Anchor struct {
	Ref AnchorRef
}

// Sources expands the reference, tolerating a nil Ref.
func (a *Anchor) Sources() AxisSources {
	if a == nil || a.Ref == nil {
		return AxisSources{}
	}
	return a.Ref.Sources()
}

// AnchorTo is shorthand for an Anchor on a single entity.
func AnchorTo(id ecs.EntityId) Anchor {
	return Anchor{Ref: SingleEntity{ID: id}}
}
