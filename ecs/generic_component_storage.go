package ecs

import (
	"reflect"
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/kelindar/bitmap"
)

// ComponentType is the tag identifying a component kind. Each Go type used as a
// component is one ComponentType.
type ComponentType = reflect.Type

// TypeOf returns the ComponentType tag for T.
func TypeOf[T any]() ComponentType {
	return reflect.TypeFor[T]()
}

// ComponentRegistry manages component type registration for an ECS instance.
// Each Storage instance has its own ComponentRegistry, allowing multiple
// independent ECS worlds to coexist without interference.
type ComponentRegistry struct {
	factories map[reflect.Type]func() iComponentStorage
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		factories: make(map[reflect.Type]func() iComponentStorage),
	}
}

// RegisterComponent registers a new component type with the given registry.
// Registration is required before a type can be stored through the type-erased
// Storage methods; the generic helpers (Set, Get, ...) register on demand.
func RegisterComponent[T any](r *ComponentRegistry) {
	t := reflect.TypeFor[T]()
	if _, ok := r.factories[t]; ok {
		return
	}
	r.factories[t] = func() iComponentStorage {
		return newGenericComponentStorage[T]()
	}
}

// getFactory returns the factory function for a given component type.
// Returns nil if the type is not registered.
func (r *ComponentRegistry) getFactory(t reflect.Type) func() iComponentStorage {
	return r.factories[t]
}

const (
	genericBlockSize = 64
)

// genericComponentStorage stores components of a specific type `T` in fixed
// size blocks so that pointers handed out by Get stay valid while the storage
// grows. Entities map to slots through an intmap, membership is tracked in a
// bitmap and iteration follows insertion order.
type genericComponentStorage[T any] struct {
	blocks    [][genericBlockSize]T
	freeSlots []int
	nextIndex int

	slots   *intmap.Map[EntityId, int]
	members bitmap.Bitmap
	order   []EntityId
}

func newGenericComponentStorage[T any]() *genericComponentStorage[T] {
	return &genericComponentStorage[T]{
		slots: intmap.New[EntityId, int](64),
	}
}

func (cs *genericComponentStorage[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

// Set upserts the component for id. Overwriting keeps the entity's slot and
// its position in the iteration order.
func (cs *genericComponentStorage[T]) Set(id EntityId, item any) bool {
	var concreteItem T
	if ptr, ok := item.(*T); ok {
		concreteItem = *ptr
	} else if val, ok := item.(T); ok {
		concreteItem = val
	} else {
		return false
	}

	cs.put(id, concreteItem)
	return true
}

func (cs *genericComponentStorage[T]) put(id EntityId, item T) *T {
	if index, ok := cs.slots.Get(id); ok {
		ptr := cs.at(index)
		*ptr = item
		return ptr
	}

	index := cs.allocate()
	ptr := cs.at(index)
	*ptr = item

	cs.slots.Put(id, index)
	cs.members.Set(uint32(id))
	cs.order = append(cs.order, id)
	return ptr
}

func (cs *genericComponentStorage[T]) allocate() int {
	if len(cs.freeSlots) > 0 {
		index := cs.freeSlots[len(cs.freeSlots)-1]
		cs.freeSlots = cs.freeSlots[:len(cs.freeSlots)-1]
		return index
	}

	index := cs.nextIndex
	cs.nextIndex++

	if index/genericBlockSize >= len(cs.blocks) {
		cs.blocks = append(cs.blocks, [genericBlockSize]T{})
	}
	return index
}

func (cs *genericComponentStorage[T]) at(index int) *T {
	return &cs.blocks[index/genericBlockSize][index%genericBlockSize]
}

// Get returns a pointer to the component of id, or nil.
func (cs *genericComponentStorage[T]) Get(id EntityId) any {
	ptr := cs.get(id)
	if ptr == nil {
		return nil
	}
	return ptr
}

func (cs *genericComponentStorage[T]) get(id EntityId) *T {
	index, ok := cs.slots.Get(id)
	if !ok {
		return nil
	}
	return cs.at(index)
}

func (cs *genericComponentStorage[T]) Has(id EntityId) bool {
	return cs.members.Contains(uint32(id))
}

// Remove deletes the component of id and frees its slot for reuse.
func (cs *genericComponentStorage[T]) Remove(id EntityId) bool {
	index, ok := cs.slots.Get(id)
	if !ok {
		return false
	}

	var zero T
	*cs.at(index) = zero
	cs.freeSlots = append(cs.freeSlots, index)

	cs.slots.Del(id)
	cs.members.Remove(uint32(id))
	if i := slices.Index(cs.order, id); i >= 0 {
		cs.order = slices.Delete(cs.order, i, i+1)
	}
	return true
}

// Entities returns the entities holding this component in insertion order.
// The returned slice is owned by the storage and must not be modified.
func (cs *genericComponentStorage[T]) Entities() []EntityId {
	return cs.order
}

func (cs *genericComponentStorage[T]) Members() bitmap.Bitmap {
	return cs.members
}

func (cs *genericComponentStorage[T]) Len() int {
	return len(cs.order)
}
