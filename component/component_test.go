package component_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
	"github.com/stretchr/testify/assert"
)

func TestPositionResolve(t *testing.T) {
	t.Run("start when not tracked", func(t *testing.T) {
		p := component.NewPosition(0, 0, -1)
		assert.Equal(t, mgl64.Vec3{0, 0, -1}, p.Resolve())
	})

	t.Run("live wins regardless of start", func(t *testing.T) {
		p := component.NewPosition(0, 0, -1)
		p.SetLive(mgl64.Vec3{2, 0, -1})
		assert.Equal(t, mgl64.Vec3{2, 0, -1}, p.Resolve())

		p.ClearLive()
		assert.Equal(t, mgl64.Vec3{0, 0, -1}, p.Resolve())
	})

	t.Run("defaults", func(t *testing.T) {
		var p *component.Position
		_, ok := p.Current()
		assert.False(t, ok)
		assert.Equal(t, mgl64.Vec3{}, p.Resolve())

		var o component.Orientation
		assert.Equal(t, mgl64.QuatIdent(), o.Resolve())

		var s component.Scale
		assert.Equal(t, mgl64.Vec3{1, 1, 1}, s.Resolve())
		assert.Equal(t, mgl64.Vec3{2, 2, 2}, (&component.Scale{Start: &mgl64.Vec3{2, 2, 2}}).Resolve())
	})
}

func TestAnchorSources(t *testing.T) {
	a, b := ecs.EntityId(3), ecs.EntityId(4)

	tests := []struct {
		name string
		ref  component.AnchorRef
		want component.AxisSources
	}{
		{
			name: "single entity",
			ref:  component.SingleEntity{ID: a},
			want: component.AxisSources{
				Position:    [3]ecs.EntityId{a, a, a},
				Orientation: [4]ecs.EntityId{a, a, a, a},
			},
		},
		{
			name: "split",
			ref:  component.SplitRef{Position: a, Orientation: b},
			want: component.AxisSources{
				Position:    [3]ecs.EntityId{a, a, a},
				Orientation: [4]ecs.EntityId{b, b, b, b},
			},
		},
		{
			name: "split without orientation",
			ref:  component.SplitRef{Position: a},
			want: component.AxisSources{
				Position: [3]ecs.EntityId{a, a, a},
			},
		},
		{
			name: "per axis",
			ref: component.PerAxis{
				Position:    [3]ecs.EntityId{a, b, a},
				Orientation: [4]ecs.EntityId{b, ecs.NoEntity, a, b},
			},
			want: component.AxisSources{
				Position:    [3]ecs.EntityId{a, b, a},
				Orientation: [4]ecs.EntityId{b, ecs.NoEntity, a, b},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anchor := component.Anchor{Ref: tt.ref}
			got := anchor.Sources()
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Any())
		})
	}

	t.Run("nil ref has no sources", func(t *testing.T) {
		var anchor component.Anchor
		assert.False(t, anchor.Sources().Any())
	})

	t.Run("axis order", func(t *testing.T) {
		src := component.PerAxis{
			Position:    [3]ecs.EntityId{1, 2, 3},
			Orientation: [4]ecs.EntityId{4, 5, 6, 7},
		}.Sources()
		for axis := 0; axis < component.AxisCount; axis++ {
			assert.Equal(t, ecs.EntityId(axis+1), src.At(axis))
		}
	})
}
