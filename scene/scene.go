// Package scene reads a YAML description of an AR world and builds its
// entities. Entities are referenced by name, so anchors, coaching overlays
// and their targets can be declared in any order.
package scene

import (
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/content"
	"github.com/plus3/arworlds/ecs"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Scene is a parsed scene document.
type Scene struct {
	Entities []Entity `yaml:"entities"`
}

// Entity describes one entity. Every field but Name is optional.
type Entity struct {
	Name            string           `yaml:"name"`
	Position        []float64        `yaml:"position"`
	Orientation     []float64        `yaml:"orientation"` // x, y, z, w
	Scale           *float64         `yaml:"scale"`
	IsAnchor        bool             `yaml:"is_anchor"`
	Anchor          *AnchorRef       `yaml:"anchor"`
	TrackedImage    *TrackedImage    `yaml:"tracked_image"`
	Model           content.ID       `yaml:"model"`
	CoachingOverlay *CoachingOverlay `yaml:"coaching_overlay"`
}

// AnchorRef is one of the three addressing modes: Entity alone, Position
// and/or Orientation, or Axes.
type AnchorRef struct {
	Entity      string `yaml:"entity"`
	Position    string `yaml:"position"`
	Orientation string `yaml:"orientation"`
	Axes        *Axes  `yaml:"axes"`
}

// Axes names one source per axis. Empty names leave the axis unset.
type Axes struct {
	Position    []string `yaml:"position"`    // x, y, z
	Orientation []string `yaml:"orientation"` // x, y, z, w
}

type TrackedImage struct {
	Image content.ID `yaml:"image"`
	Width float64    `yaml:"width"`
}

type CoachingOverlay struct {
	Text   string   `yaml:"text"`
	Images []string `yaml:"images"`
}

// Load parses a scene document. Unknown keys are errors.
func Load(r io.Reader) (*Scene, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scene
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return &s, nil
		}
		return nil, eris.Wrap(err, "failed to parse scene")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scene) validate() error {
	seen := make(map[string]bool, len(s.Entities))
	for i, e := range s.Entities {
		label := e.label(i)
		if e.Name != "" {
			if seen[e.Name] {
				return eris.Errorf("%s: duplicate entity name", label)
			}
			seen[e.Name] = true
		}
		if e.Position != nil && len(e.Position) != 3 {
			return eris.Errorf("%s: position needs 3 values, got %d", label, len(e.Position))
		}
		if e.Orientation != nil && len(e.Orientation) != 4 {
			return eris.Errorf("%s: orientation needs 4 values (x, y, z, w), got %d", label, len(e.Orientation))
		}
		if e.Anchor != nil {
			if err := e.Anchor.validate(); err != nil {
				return eris.Wrap(err, label)
			}
		}
		if e.TrackedImage != nil && e.TrackedImage.Image.IsZero() {
			return eris.Errorf("%s: tracked_image needs an image", label)
		}
	}
	return nil
}

func (e Entity) label(i int) string {
	if e.Name != "" {
		return "entity " + e.Name
	}
	return "entity #" + strconv.Itoa(i)
}

func (a *AnchorRef) validate() error {
	modes := 0
	if a.Entity != "" {
		modes++
	}
	if a.Position != "" || a.Orientation != "" {
		modes++
	}
	if a.Axes != nil {
		modes++
		if len(a.Axes.Position) > 3 || len(a.Axes.Orientation) > 4 {
			return eris.New("anchor axes take at most 3 position and 4 orientation sources")
		}
	}
	if modes != 1 {
		return eris.New("anchor needs exactly one of entity, position/orientation or axes")
	}
	return nil
}

// Build creates the scene's entities in world and returns the ids of the
// named ones. A reference to an unknown name fails the build before any
// component is added.
func (s *Scene) Build(world *ecs.World) (map[string]ecs.EntityId, error) {
	ids := make([]ecs.EntityId, len(s.Entities))
	names := make(map[string]ecs.EntityId)
	for i, e := range s.Entities {
		ids[i] = world.CreateEntity()
		if e.Name != "" {
			names[e.Name] = ids[i]
		}
	}

	components := make([][]any, len(s.Entities))
	for i, e := range s.Entities {
		cs, err := e.components(names)
		if err != nil {
			return nil, eris.Wrap(err, e.label(i))
		}
		components[i] = cs
	}

	storage := world.Storage()
	component.Register(storage.Registry())
	for i, cs := range components {
		for _, c := range cs {
			storage.SetComponent(ids[i], c)
		}
	}
	return names, nil
}

func (e Entity) components(names map[string]ecs.EntityId) ([]any, error) {
	lookup := func(name string) (ecs.EntityId, error) {
		if name == "" {
			return ecs.NoEntity, nil
		}
		id, ok := names[name]
		if !ok {
			return ecs.NoEntity, eris.Errorf("unknown entity %q", name)
		}
		return id, nil
	}

	var out []any
	if e.Position != nil {
		out = append(out, component.NewPosition(e.Position[0], e.Position[1], e.Position[2]))
	}
	if e.Orientation != nil {
		q := mgl64.Quat{W: e.Orientation[3], V: mgl64.Vec3{e.Orientation[0], e.Orientation[1], e.Orientation[2]}}
		if q.Len() == 0 {
			q = mgl64.QuatIdent()
		}
		out = append(out, component.NewOrientation(q.Normalize()))
	}
	if e.Scale != nil {
		out = append(out, component.NewScale(*e.Scale))
	}
	if e.IsAnchor {
		out = append(out, component.IsAnchor{})
	}
	if e.Anchor != nil {
		ref, err := e.Anchor.resolve(lookup)
		if err != nil {
			return nil, err
		}
		out = append(out, component.Anchor{Ref: ref})
	}
	if e.TrackedImage != nil {
		out = append(out, component.TrackedImage{
			Image:               e.TrackedImage.Image,
			PhysicalWidthMeters: e.TrackedImage.Width,
		})
	}
	if !e.Model.IsZero() {
		out = append(out, component.GLTFModel{Model: e.Model})
	}
	if e.CoachingOverlay != nil {
		overlay := component.CoachingOverlay{Text: e.CoachingOverlay.Text}
		for _, name := range e.CoachingOverlay.Images {
			id, err := lookup(name)
			if err != nil {
				return nil, err
			}
			overlay.TrackedImages = append(overlay.TrackedImages, id)
		}
		out = append(out, overlay)
	}
	return out, nil
}

func (a *AnchorRef) resolve(lookup func(string) (ecs.EntityId, error)) (component.AnchorRef, error) {
	switch {
	case a.Entity != "":
		id, err := lookup(a.Entity)
		if err != nil {
			return nil, err
		}
		return component.SingleEntity{ID: id}, nil

	case a.Axes != nil:
		var ref component.PerAxis
		for i, name := range a.Axes.Position {
			id, err := lookup(strings.TrimSpace(name))
			if err != nil {
				return nil, err
			}
			ref.Position[i] = id
		}
		for i, name := range a.Axes.Orientation {
			id, err := lookup(strings.TrimSpace(name))
			if err != nil {
				return nil, err
			}
			ref.Orientation[i] = id
		}
		return ref, nil

	default:
		pos, err := lookup(a.Position)
		if err != nil {
			return nil, err
		}
		ori, err := lookup(a.Orientation)
		if err != nil {
			return nil, err
		}
		return component.SplitRef{Position: pos, Orientation: ori}, nil
	}
}
