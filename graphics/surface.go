// Package graphics renders GLTFModel entities through a Surface. The render
// engine itself stays behind the Surface and Node interfaces; this package
// loads models, keeps one node per entity and copies each entity's pose and
// visibility onto its node every frame.
package graphics

import (
	"bytes"
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/ecs"
	"github.com/qmuntal/gltf"
	"github.com/rotisserie/eris"
)

// Surface is a render target able to host model nodes.
type Surface interface {
	CreateNode(id ecs.EntityId, model *Model) (Node, error)
	Render() error
	// RunLoop calls tick once per displayed frame until ctx is done or the
	// surface is closed.
	RunLoop(ctx context.Context, tick func()) error
}

// Node is the visual handle of one entity.
type Node interface {
	SetPosition(p mgl64.Vec3)
	SetOrientation(q mgl64.Quat)
	SetScale(s mgl64.Vec3)
	SetVisible(visible bool)
}

// Model is a decoded glTF document.
type Model struct {
	Document *gltf.Document
	// Min and Max bound every mesh position accessor that declares bounds.
	Min, Max mgl64.Vec3
}

// DecodeModel parses a binary (GLB) or JSON glTF payload.
func DecodeModel(data []byte) (*Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, eris.Wrap(err, "failed to decode gltf model")
	}
	if len(doc.Meshes) == 0 {
		return nil, eris.New("gltf model has no meshes")
	}

	m := &Model{Document: doc}
	first := true
	for _, mesh := range doc.Meshes {
		for _, prim := range mesh.Primitives {
			idx, ok := prim.Attributes["POSITION"]
			if !ok || int(idx) >= len(doc.Accessors) {
				continue
			}
			acc := doc.Accessors[idx]
			if len(acc.Min) < 3 || len(acc.Max) < 3 {
				continue
			}
			lo := mgl64.Vec3{acc.Min[0], acc.Min[1], acc.Min[2]}
			hi := mgl64.Vec3{acc.Max[0], acc.Max[1], acc.Max[2]}
			if first {
				m.Min, m.Max = lo, hi
				first = false
				continue
			}
			for i := 0; i < 3; i++ {
				m.Min[i] = min(m.Min[i], lo[i])
				m.Max[i] = max(m.Max[i], hi[i])
			}
		}
	}
	return m, nil
}

// Size returns the extent of the model's bounds.
func (m *Model) Size() mgl64.Vec3 {
	return m.Max.Sub(m.Min)
}
