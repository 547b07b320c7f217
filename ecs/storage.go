package ecs

import (
	"reflect"
	"sort"
	"unsafe"

	"github.com/kelindar/bitmap"
)

// Storage is the component store of a world. It holds one sparse storage per
// component type, allocates entity ids and keeps singleton components that
// are not attached to any entity.
//
// Storage is not safe for concurrent use. All access happens on the goroutine
// driving the scheduler; background work reaches it through the Mailbox.
type Storage struct {
	registry   *ComponentRegistry
	stores     map[reflect.Type]iComponentStorage
	storeOrder []reflect.Type

	lastEntity EntityId
	alive      bitmap.Bitmap

	singletons     map[reflect.Type]*singletonEntry
	singletonOrder []reflect.Type
}

// NewStorage creates a new ECS storage system with the given component registry
func NewStorage(registry *ComponentRegistry) *Storage {
	if registry == nil {
		registry = NewComponentRegistry()
	}
	return &Storage{
		registry:   registry,
		stores:     make(map[reflect.Type]iComponentStorage),
		singletons: make(map[reflect.Type]*singletonEntry),
	}
}

// Registry returns the component registry backing this storage.
func (s *Storage) Registry() *ComponentRegistry {
	return s.registry
}

// NewEntity allocates a fresh entity id with no components.
func (s *Storage) NewEntity() EntityId {
	s.lastEntity++
	s.alive.Set(uint32(s.lastEntity))
	return s.lastEntity
}

// Alive reports whether id was allocated and has not been deleted.
func (s *Storage) Alive(id EntityId) bool {
	return s.alive.Contains(uint32(id))
}

// EntityCount returns the number of live entities.
func (s *Storage) EntityCount() int {
	return s.alive.Count()
}

// Entities returns every live entity in allocation order.
func (s *Storage) Entities() []EntityId {
	ids := make([]EntityId, 0, s.alive.Count())
	s.alive.Range(func(x uint32) {
		ids = append(ids, EntityId(x))
	})
	return ids
}

// Spawn creates a new entity with the provided components
func (s *Storage) Spawn(components ...any) EntityId {
	id := s.NewEntity()
	for _, comp := range components {
		s.SetComponent(id, comp)
	}
	return id
}

// Delete removes all data related to the entity ID. The id is not reused.
func (s *Storage) Delete(id EntityId) {
	if !s.Alive(id) {
		return
	}
	for _, typ := range s.storeOrder {
		s.stores[typ].Remove(id)
	}
	s.alive.Remove(uint32(id))
}

// SetComponent upserts a component on the entity. The component may be passed
// by value or by pointer; its type must be registered.
func (s *Storage) SetComponent(id EntityId, component any) {
	if id == NoEntity {
		return
	}

	compType := componentTypeOf(component)
	store := s.storeFor(compType)
	if store == nil {
		panic("component type " + compType.String() + " not registered")
	}

	store.Set(id, component)
	s.alive.Set(uint32(id))
	if id > s.lastEntity {
		s.lastEntity = id
	}
}

// AddComponent is an alias of SetComponent kept for command buffers.
func (s *Storage) AddComponent(id EntityId, component any) {
	s.SetComponent(id, component)
}

// RemoveComponent deletes a component of the given type from the entity.
// The entity stays alive even when it has no components left.
func (s *Storage) RemoveComponent(id EntityId, compType reflect.Type) bool {
	store, ok := s.stores[compType]
	if !ok {
		return false
	}
	return store.Remove(id)
}

// GetComponent returns a pointer to the component for the given entity ID and
// component type, or nil when the entity does not have one.
func (s *Storage) GetComponent(id EntityId, compType reflect.Type) any {
	store, ok := s.stores[compType]
	if !ok {
		return nil
	}
	return store.Get(id)
}

// HasComponent checks if an entity has a specific component type
func (s *Storage) HasComponent(id EntityId, compType reflect.Type) bool {
	store, ok := s.stores[compType]
	if !ok {
		return false
	}
	return store.Has(id)
}

// EntitiesWith returns the entities holding a component of the given type in
// the order the component was first added. Overwriting a component does not
// change the order. The returned slice must not be modified.
func (s *Storage) EntitiesWith(compType reflect.Type) []EntityId {
	store, ok := s.stores[compType]
	if !ok {
		return nil
	}
	return store.Entities()
}

// ComponentsOf returns pointers to every component of an entity, ordered by
// the time each component type was first stored.
func (s *Storage) ComponentsOf(id EntityId) []any {
	var out []any
	for _, typ := range s.storeOrder {
		if c := s.stores[typ].Get(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// ComponentTypes returns the component types that have a storage, in creation order.
func (s *Storage) ComponentTypes() []reflect.Type {
	return s.storeOrder
}

func (s *Storage) storeFor(compType reflect.Type) iComponentStorage {
	if store, ok := s.stores[compType]; ok {
		return store
	}

	factory := s.registry.getFactory(compType)
	if factory == nil {
		return nil
	}

	store := factory()
	s.stores[compType] = store
	s.storeOrder = append(s.storeOrder, compType)
	return store
}

func (s *Storage) membersOf(compType reflect.Type) (bitmap.Bitmap, bool) {
	store, ok := s.stores[compType]
	if !ok {
		return nil, false
	}
	return store.Members(), true
}

func typedStore[T any](s *Storage) *genericComponentStorage[T] {
	t := reflect.TypeFor[T]()
	store, ok := s.stores[t]
	if !ok {
		RegisterComponent[T](s.registry)
		store = s.storeFor(t)
	}
	return store.(*genericComponentStorage[T])
}

// componentTypeOf extracts the component type of a value passed by value or pointer
func componentTypeOf(component any) reflect.Type {
	compType := reflect.TypeOf(component)
	if compType == nil {
		panic("component cannot be nil")
	}

	// If it's a pointer, get the underlying type
	if compType.Kind() == reflect.Ptr {
		compType = compType.Elem()
	}

	// Components can be structs or primitives (int, string, etc.)
	// But not pointers, maps, channels, or functions (those aren't value types)
	if compType.Kind() == reflect.Ptr || compType.Kind() == reflect.Map ||
		compType.Kind() == reflect.Chan || compType.Kind() == reflect.Func {
		panic("components cannot be pointers, maps, channels, or functions")
	}

	return compType
}

// Get returns the component T of an entity.
func Get[T any](s *Storage, id EntityId) (*T, bool) {
	store, ok := s.stores[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	ptr := store.(*genericComponentStorage[T]).get(id)
	return ptr, ptr != nil
}

// Set upserts the component T of an entity and returns a pointer to the stored
// value. The type is registered on first use.
func Set[T any](s *Storage, id EntityId, value T) *T {
	if id == NoEntity {
		return nil
	}
	ptr := typedStore[T](s).put(id, value)
	s.alive.Set(uint32(id))
	if id > s.lastEntity {
		s.lastEntity = id
	}
	return ptr
}

// GetOrAdd returns the component T of an entity, adding a zero value first
// when the entity does not have one yet.
func GetOrAdd[T any](s *Storage, id EntityId) *T {
	if ptr, ok := Get[T](s, id); ok {
		return ptr
	}
	var zero T
	return Set(s, id, zero)
}

// Has reports whether the entity has component T.
func Has[T any](s *Storage, id EntityId) bool {
	return s.HasComponent(id, reflect.TypeFor[T]())
}

// Remove deletes component T from an entity.
func Remove[T any](s *Storage, id EntityId) bool {
	return s.RemoveComponent(id, reflect.TypeFor[T]())
}

// EntitiesWith returns the entities holding component T in insertion order.
func EntitiesWith[T any](s *Storage) []EntityId {
	return s.EntitiesWith(reflect.TypeFor[T]())
}

type ComponentReader interface {
	GetComponent(EntityId, reflect.Type) any
}

// ReadComponent reads component T through any ComponentReader, returning nil
// when the entity does not have it.
func ReadComponent[T any](reader ComponentReader, entityId EntityId) *T {
	comp, _ := reader.GetComponent(entityId, reflect.TypeFor[T]()).(*T)
	return comp
}

// StorageStats summarizes the contents of a Storage.
type StorageStats struct {
	TotalEntityCount   int
	ComponentCount     int
	SingletonCount     int
	ComponentBreakdown []ComponentStats
	SingletonTypes     []string
}

// ComponentStats describes the population of one component type.
type ComponentStats struct {
	Type        string
	EntityCount int
}

// CollectStats gathers entity, component and singleton counts.
func (s *Storage) CollectStats() StorageStats {
	stats := StorageStats{
		TotalEntityCount: s.alive.Count(),
		SingletonCount:   len(s.singletons),
	}

	for _, typ := range s.storeOrder {
		n := s.stores[typ].Len()
		stats.ComponentCount += n
		stats.ComponentBreakdown = append(stats.ComponentBreakdown, ComponentStats{
			Type:        typ.String(),
			EntityCount: n,
		})
	}
	sort.Slice(stats.ComponentBreakdown, func(i, j int) bool {
		return stats.ComponentBreakdown[i].Type < stats.ComponentBreakdown[j].Type
	})

	for _, typ := range s.singletonOrder {
		stats.SingletonTypes = append(stats.SingletonTypes, typ.String())
	}
	return stats
}

// singletonEntry holds a singleton value at a stable address.
type singletonEntry struct {
	value   reflect.Value
	dataPtr unsafe.Pointer
}

// AddSingleton stores a singleton component, replacing any previous value of
// the same type in place so cached Singleton pointers stay valid.
func (s *Storage) AddSingleton(component any) {
	compType := componentTypeOf(component)
	value := reflect.ValueOf(component)
	if value.Kind() == reflect.Ptr {
		value = value.Elem()
	}

	if entry, ok := s.singletons[compType]; ok {
		entry.value.Set(value)
		return
	}

	ptr := reflect.New(compType)
	ptr.Elem().Set(value)
	s.singletons[compType] = &singletonEntry{
		value:   ptr.Elem(),
		dataPtr: ptr.UnsafePointer(),
	}
	s.singletonOrder = append(s.singletonOrder, compType)
}

// GetSingleton returns a pointer to the singleton of the given type, or nil.
func (s *Storage) GetSingleton(compType reflect.Type) any {
	entry := s.getSingletonEntry(compType)
	if entry == nil {
		return nil
	}
	return entry.value.Addr().Interface()
}

func (s *Storage) getSingletonEntry(compType reflect.Type) *singletonEntry {
	return s.singletons[compType]
}
