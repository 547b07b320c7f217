package ecs_test

import (
	"reflect"
	"testing"

	"github.com/plus3/arworlds/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityAllocation(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	first := storage.NewEntity()
	second := storage.NewEntity()

	assert.Equal(t, ecs.EntityId(1), first)
	assert.Equal(t, ecs.EntityId(2), second)
	assert.False(t, ecs.NoEntity.Valid())
	assert.True(t, first.Valid())

	t.Run("ids are not reused after delete", func(t *testing.T) {
		storage.Delete(second)
		third := storage.NewEntity()
		assert.Equal(t, ecs.EntityId(3), third)
		assert.False(t, storage.Alive(second))
		assert.True(t, storage.Alive(third))
	})
}

func TestGetComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(&Position{X: 3, Y: 4}, Name{Value: "Test Entity"})

	posComp := storage.GetComponent(id, reflect.TypeOf(Position{}))
	require.NotNil(t, posComp)
	pos := posComp.(*Position)
	assert.Equal(t, 3.0, pos.X)
	assert.Equal(t, 4.0, pos.Y)

	name := ecs.ReadComponent[Name](storage, id)
	require.NotNil(t, name)
	assert.Equal(t, "Test Entity", name.Value)

	t.Run("absence is not an error", func(t *testing.T) {
		assert.Nil(t, storage.GetComponent(id, reflect.TypeOf(Velocity{})))
		assert.Nil(t, ecs.ReadComponent[Velocity](storage, id))
		assert.Nil(t, storage.GetComponent(ecs.EntityId(999), reflect.TypeOf(Position{})))

		_, ok := ecs.Get[Health](storage, id)
		assert.False(t, ok)
	})
}

func TestSetOverwrites(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	id := storage.NewEntity()

	ecs.Set(storage, id, Score(1))
	ecs.Set(storage, id, Score(2))
	storage.SetComponent(id, Score(3))

	score, ok := ecs.Get[Score](storage, id)
	require.True(t, ok)
	assert.Equal(t, Score(3), *score)
	assert.Len(t, ecs.EntitiesWith[Score](storage), 1)
}

func TestEntitiesWithInsertionOrder(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	a := storage.NewEntity()
	b := storage.NewEntity()
	c := storage.NewEntity()

	ecs.Set(storage, c, Tag("c"))
	ecs.Set(storage, a, Tag("a"))
	ecs.Set(storage, b, Tag("b"))

	assert.Equal(t, []ecs.EntityId{c, a, b}, ecs.EntitiesWith[Tag](storage))

	t.Run("overwrite keeps position", func(t *testing.T) {
		ecs.Set(storage, a, Tag("a2"))
		assert.Equal(t, []ecs.EntityId{c, a, b}, ecs.EntitiesWith[Tag](storage))
	})

	t.Run("re-adding after removal appends", func(t *testing.T) {
		assert.True(t, ecs.Remove[Tag](storage, c))
		ecs.Set(storage, c, Tag("c2"))
		assert.Equal(t, []ecs.EntityId{a, b, c}, ecs.EntitiesWith[Tag](storage))
	})

	t.Run("order is stable across reads", func(t *testing.T) {
		first := append([]ecs.EntityId(nil), storage.EntitiesWith(ecs.TypeOf[Tag]())...)
		second := storage.EntitiesWith(ecs.TypeOf[Tag]())
		assert.Equal(t, first, second)
	})
}

func TestPointerStability(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	first := storage.Spawn(Position{X: 1})
	ptr, ok := ecs.Get[Position](storage, first)
	require.True(t, ok)

	// Grow well beyond a single block.
	for i := 0; i < 500; i++ {
		storage.Spawn(Position{X: float64(i)})
	}

	again, ok := ecs.Get[Position](storage, first)
	require.True(t, ok)
	assert.Same(t, ptr, again)
	assert.Equal(t, 1.0, again.X)
}

func TestDeleteEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(&Position{X: 1, Y: 1}, &Health{Current: 100, Max: 100})
	other := storage.Spawn(&Position{X: 2})
	require.NotNil(t, storage.GetComponent(id, reflect.TypeOf(Position{})))

	storage.Delete(id)

	assert.Nil(t, storage.GetComponent(id, reflect.TypeOf(Position{})))
	assert.Nil(t, storage.GetComponent(id, reflect.TypeOf(Health{})))
	assert.Equal(t, []ecs.EntityId{other}, ecs.EntitiesWith[Position](storage))
	assert.Equal(t, 1, storage.EntityCount())

	t.Run("deleting twice is harmless", func(t *testing.T) {
		storage.Delete(id)
		assert.Equal(t, 1, storage.EntityCount())
	})
}

func TestRemoveComponentKeepsEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Position{}, Velocity{DX: 1})
	assert.True(t, storage.RemoveComponent(id, reflect.TypeOf(Velocity{})))
	assert.False(t, storage.RemoveComponent(id, reflect.TypeOf(Velocity{})))

	assert.True(t, storage.Alive(id))
	assert.True(t, ecs.Has[Position](storage, id))
	assert.False(t, ecs.Has[Velocity](storage, id))
}

func TestUnregisteredComponent(t *testing.T) {
	storage := ecs.NewStorage(ecs.NewComponentRegistry())
	id := storage.NewEntity()

	assert.Panics(t, func() {
		storage.SetComponent(id, Position{})
	})

	t.Run("generic set registers on demand", func(t *testing.T) {
		ecs.Set(storage, id, Position{X: 5})
		pos := ecs.ReadComponent[Position](storage, id)
		require.NotNil(t, pos)
		assert.Equal(t, 5.0, pos.X)

		storage.SetComponent(id, Position{X: 6})
		assert.Equal(t, 6.0, pos.X)
	})
}

func TestInvalidComponentKinds(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	id := storage.NewEntity()

	assert.Panics(t, func() { storage.SetComponent(id, map[string]int{}) })
	assert.Panics(t, func() { storage.SetComponent(id, func() {}) })
	assert.Panics(t, func() { storage.SetComponent(id, nil) })
}

func TestGetOrAdd(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	id := storage.NewEntity()

	health := ecs.GetOrAdd[Health](storage, id)
	health.Current = 10

	again := ecs.GetOrAdd[Health](storage, id)
	assert.Same(t, health, again)
	assert.Equal(t, 10, again.Current)
}

func TestComponentsOf(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Name{Value: "n"}, Score(7))
	comps := storage.ComponentsOf(id)
	require.Len(t, comps, 2)
	assert.IsType(t, &Name{}, comps[0])
	assert.IsType(t, new(Score), comps[1])
}

func TestStorageStats(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	stats := storage.CollectStats()
	assert.Equal(t, 0, stats.TotalEntityCount)
	assert.Equal(t, 0, stats.ComponentCount)

	storage.Spawn(Score(42), Tag("hello"))
	storage.Spawn(Score(100), Tag("world"))
	storage.Spawn(Tag("test"))

	ecs.NewSingleton[Health](storage, Health{Max: 3})

	stats = storage.CollectStats()
	assert.Equal(t, 3, stats.TotalEntityCount)
	assert.Equal(t, 5, stats.ComponentCount)
	assert.Equal(t, 1, stats.SingletonCount)
	require.Len(t, stats.ComponentBreakdown, 2)
	assert.Equal(t, "ecs_test.Score", stats.ComponentBreakdown[0].Type)
	assert.Equal(t, 2, stats.ComponentBreakdown[0].EntityCount)
	assert.Equal(t, "ecs_test.Tag", stats.ComponentBreakdown[1].Type)
	assert.Equal(t, 3, stats.ComponentBreakdown[1].EntityCount)
	assert.Equal(t, []string{"ecs_test.Health"}, stats.SingletonTypes)
}
