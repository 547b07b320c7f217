package component

import (
	"github.com/plus3/arworlds/content"
	"github.com/plus3/arworlds/ecs"
)

// TrackedImage is an image target the device should recognize. Once tracked,
// the entity's Position and Orientation receive live values.
type TrackedImage struct {
	Image               content.ID
	PhysicalWidthMeters float64
}

// GLTFModel is a binary glTF model rendered at the entity's pose.
type GLTFModel struct {
	Model content.ID
}

// CoachingOverlay shows instructions until any of the referenced tracked
// images is found.
type CoachingOverlay struct {
	TrackedImages []ecs.EntityId
	Text          string
}

// Register adds every component of this package to a registry.
func Register(r *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Position](r)
	ecs.RegisterComponent[Orientation](r)
	ecs.RegisterComponent[Scale](r)
	ecs.RegisterComponent[Visibility](r)
	ecs.RegisterComponent[IsAnchor](r)
	ecs.RegisterComponent[Anchor](r)
	ecs.RegisterComponent[TrackedImage](r)
	ecs.RegisterComponent[GLTFModel](r)
	ecs.RegisterComponent[CoachingOverlay](r)
}
