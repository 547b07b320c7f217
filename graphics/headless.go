package graphics

import (
	"context"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/ecs"
)

// HeadlessSurface keeps nodes in memory and ticks on a timer. It backs tests
// and runs without a display.
type HeadlessSurface struct {
	interval time.Duration

	mu     sync.Mutex
	nodes  map[ecs.EntityId]*HeadlessNode
	frames int
}

// NewHeadlessSurface creates a surface ticking every interval.
func NewHeadlessSurface(interval time.Duration) *HeadlessSurface {
	return &HeadlessSurface{
		interval: interval,
		nodes:    make(map[ecs.EntityId]*HeadlessNode),
	}
}

func (h *HeadlessSurface) CreateNode(id ecs.EntityId, model *Model) (Node, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	node := &HeadlessNode{
		Model:       model,
		Orientation: mgl64.QuatIdent(),
		Scale:       mgl64.Vec3{1, 1, 1},
		Visible:     true,
	}
	h.nodes[id] = node
	return node, nil
}

// Node returns the node created for an entity.
func (h *HeadlessSurface) Node(id ecs.EntityId) (*HeadlessNode, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	node, ok := h.nodes[id]
	return node, ok
}

// Nodes returns the number of nodes created.
func (h *HeadlessSurface) Nodes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.nodes)
}

func (h *HeadlessSurface) Render() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames++
	return nil
}

// Frames returns how many frames were rendered.
func (h *HeadlessSurface) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

func (h *HeadlessSurface) RunLoop(ctx context.Context, tick func()) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick()
		}
	}
}

// HeadlessNode records the last state applied to it.
type HeadlessNode struct {
	Model       *Model
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Scale       mgl64.Vec3
	Visible     bool
}

func (n *HeadlessNode) SetPosition(p mgl64.Vec3)    { n.Position = p }
func (n *HeadlessNode) SetOrientation(q mgl64.Quat) { n.Orientation = q }
func (n *HeadlessNode) SetScale(s mgl64.Vec3)       { n.Scale = s }
func (n *HeadlessNode) SetVisible(visible bool)     { n.Visible = visible }
