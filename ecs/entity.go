package ecs

// EntityId identifies an entity. Ids are allocated monotonically by Storage
// starting at 1 and are never reused, so an id held by another component
// (an anchor reference, for example) can never silently point at a new entity.
type EntityId uint32

// NoEntity is the zero EntityId. It never names a live entity and is used to
// mark unset entity references.
const NoEntity EntityId = 0

// Valid reports whether the id is not NoEntity.
func (e EntityId) Valid() bool {
	return e != NoEntity
}
