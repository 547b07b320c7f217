package ecs

import "reflect"

// Commands provides a buffer for deferred ECS operations that are executed at the end of a frame.
// This prevents structural changes to the ECS storage while systems iterate it.
type Commands struct {
	storage *Storage
	spawns  []spawnCommand
	deletes []EntityId
	adds    []addComponentCommand
	removes []removeComponentCommand
	defers  []func()
}

func newCommands(storage *Storage) *Commands {
	return &Commands{storage: storage}
}

type spawnCommand struct {
	entity     EntityId
	components []any
}

type addComponentCommand struct {
	entity    EntityId
	component any
}

type removeComponentCommand struct {
	entity   EntityId
	compType reflect.Type
}

// Defer queues a function to run after all other commands of the frame.
func (c *Commands) Defer(fn func()) {
	c.defers = append(c.defers, fn)
}

// Spawn reserves an entity id immediately and queues the insertion of its
// components. The id can be referenced by other components right away.
func (c *Commands) Spawn(components ...any) EntityId {
	id := c.storage.NewEntity()
	c.spawns = append(c.spawns, spawnCommand{entity: id, components: components})
	return id
}

// Delete queues an entity deletion operation.
func (c *Commands) Delete(entity EntityId) {
	c.deletes = append(c.deletes, entity)
}

// AddComponent queues a component upsert.
func (c *Commands) AddComponent(entity EntityId, component any) {
	c.adds = append(c.adds, addComponentCommand{
		entity:    entity,
		component: component,
	})
}

// RemoveComponent queues a component removal operation.
func (c *Commands) RemoveComponent(entity EntityId, compType reflect.Type) {
	c.removes = append(c.removes, removeComponentCommand{
		entity:   entity,
		compType: compType,
	})
}

// Pending returns the number of queued operations.
func (c *Commands) Pending() int {
	return len(c.spawns) + len(c.deletes) + len(c.adds) + len(c.removes) + len(c.defers)
}

// Flush applies all commands to the provided storage, resetting the buffer state
func (c *Commands) Flush(storage *Storage) {
	// A panicking command is dropped with the rest of the buffer.
	defer c.reset()

	deletedEntities := make(map[EntityId]bool, len(c.deletes))
	for _, id := range c.deletes {
		deletedEntities[id] = true
	}

	for _, cmd := range c.spawns {
		if deletedEntities[cmd.entity] {
			continue
		}
		for _, comp := range cmd.components {
			storage.SetComponent(cmd.entity, comp)
		}
	}

	for _, cmd := range c.removes {
		if !deletedEntities[cmd.entity] {
			storage.RemoveComponent(cmd.entity, cmd.compType)
		}
	}

	for _, cmd := range c.adds {
		if !deletedEntities[cmd.entity] {
			storage.SetComponent(cmd.entity, cmd.component)
		}
	}

	for _, id := range c.deletes {
		storage.Delete(id)
	}

	for _, fn := range c.defers {
		fn()
	}
}

func (c *Commands) reset() {
	c.spawns = c.spawns[:0]
	c.deletes = c.deletes[:0]
	c.adds = c.adds[:0]
	c.removes = c.removes[:0]
	c.defers = c.defers[:0]
}
