// Package ebitensurface is a graphics.Surface drawing a top-down preview of
// the world with ebiten: every visible model is a rectangle covering its
// scaled footprint on the x/z plane.
package ebitensurface

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/graphics"
)

// Overlay is drawn above the preview. The Dear ImGui ebiten backend
// satisfies it.
type Overlay interface {
	BeginFrame()
	EndFrame()
	Draw(screen *ebiten.Image)
	Layout(width, height int)
}

// Option configures a Surface.
type Option func(*Surface)

// WithOverlay draws overlay above the preview and brackets every tick with
// its frame calls.
func WithOverlay(overlay Overlay) Option {
	return func(s *Surface) {
		s.overlay = overlay
	}
}

// WithPixelsPerMeter sets the preview zoom, 200 by default.
func WithPixelsPerMeter(ppm float64) Option {
	return func(s *Surface) {
		s.ppm = ppm
	}
}

var (
	background = color.RGBA{R: 0x18, G: 0x1b, B: 0x22, A: 0xff}
	gridColor  = color.RGBA{R: 0x2c, G: 0x31, B: 0x3c, A: 0xff}
	modelColor = color.RGBA{R: 0x4f, G: 0xc1, B: 0xe9, A: 0xff}
	originDot  = color.RGBA{R: 0xe9, G: 0x57, B: 0x3f, A: 0xff}
)

// Surface is an ebiten window.
type Surface struct {
	title         string
	width, height int
	ppm           float64
	overlay       Overlay

	mu     sync.Mutex
	nodes  []*node
	frames int
}

// New creates a surface; the window opens in RunLoop.
func New(title string, width, height int, opts ...Option) *Surface {
	s := &Surface{
		title:  title,
		width:  width,
		height: height,
		ppm:    200,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Surface) CreateNode(id ecs.EntityId, model *graphics.Model) (graphics.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := &node{
		footprint:   model.Size(),
		orientation: mgl64.QuatIdent(),
		scale:       mgl64.Vec3{1, 1, 1},
		visible:     true,
	}
	if n.footprint.X() == 0 || n.footprint.Z() == 0 {
		n.footprint = mgl64.Vec3{0.1, 0.1, 0.1}
	}
	s.nodes = append(s.nodes, n)
	return n, nil
}

func (s *Surface) Render() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *Surface) RunLoop(ctx context.Context, tick func()) error {
	ebiten.SetWindowSize(s.width, s.height)
	ebiten.SetWindowTitle(s.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	err := ebiten.RunGame(&game{surface: s, ctx: ctx, tick: tick})
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

type game struct {
	surface *Surface
	ctx     context.Context
	tick    func()
}

func (g *game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	if o := g.surface.overlay; o != nil {
		o.BeginFrame()
		defer o.EndFrame()
	}
	g.tick()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	s := g.surface
	screen.Fill(background)

	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	cx, cy := float32(w)/2, float32(h)/2
	ppm := float32(s.ppm)

	for x := cx; x < float32(w); x += ppm {
		vector.StrokeLine(screen, x, 0, x, float32(h), 1, gridColor, false)
		vector.StrokeLine(screen, 2*cx-x, 0, 2*cx-x, float32(h), 1, gridColor, false)
	}
	for y := cy; y < float32(h); y += ppm {
		vector.StrokeLine(screen, 0, y, float32(w), y, 1, gridColor, false)
		vector.StrokeLine(screen, 0, 2*cy-y, float32(w), 2*cy-y, 1, gridColor, false)
	}
	vector.DrawFilledCircle(screen, cx, cy, 4, originDot, true)

	s.mu.Lock()
	visible := 0
	for _, n := range s.nodes {
		if !n.visible {
			continue
		}
		visible++
		fw := float32(n.footprint.X()*n.scale.X()) * ppm
		fd := float32(n.footprint.Z()*n.scale.Z()) * ppm
		px := cx + float32(n.position.X())*ppm
		py := cy + float32(n.position.Z())*ppm
		vector.DrawFilledRect(screen, px-fw/2, py-fd/2, fw, fd, modelColor, false)

		// heading of the model's -z axis
		fwd := n.orientation.Rotate(mgl64.Vec3{0, 0, -1})
		length := float32(math.Max(float64(fw), float64(fd))) / 2
		vector.StrokeLine(screen, px, py, px+float32(fwd.X())*length, py+float32(fwd.Z())*length, 2, originDot, true)
	}
	status := fmt.Sprintf("frames %d  models %d/%d  tps %.0f", s.frames, visible, len(s.nodes), ebiten.ActualTPS())
	s.mu.Unlock()

	ebitenutil.DebugPrint(screen, status)

	if o := s.overlay; o != nil {
		o.Draw(screen)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if o := g.surface.overlay; o != nil {
		o.Layout(outsideWidth, outsideHeight)
	}
	return outsideWidth, outsideHeight
}

type node struct {
	footprint   mgl64.Vec3
	position    mgl64.Vec3
	orientation mgl64.Quat
	scale       mgl64.Vec3
	visible     bool
}

func (n *node) SetPosition(p mgl64.Vec3)    { n.position = p }
func (n *node) SetOrientation(q mgl64.Quat) { n.orientation = q }
func (n *node) SetScale(s mgl64.Vec3)       { n.scale = s }
func (n *node) SetVisible(visible bool)     { n.visible = visible }
