// Package modelscaling lets the user resize models with step-and-hold
// controls. A press changes the uniform scale by Step; after HoldDelay the
// held control changes it by HoldStep every frame.
package modelscaling

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
	"github.com/rs/zerolog"
)

const (
	Step      = 0.01
	HoldStep  = 0.02
	HoldDelay = 1.0 // seconds
	MinScale  = 0.01

	// Hint is shown with the scale controls.
	Hint = "Adjust your model size, as desired."
)

// Direction is the control currently held.
type Direction int

const (
	None     Direction = 0
	Increase Direction = 1
	Decrease Direction = -1
)

// ScaleInput is the singleton the input adapter writes. Held is the control
// currently pressed, None when released.
type ScaleInput struct {
	Held Direction
}

// ScaleChanged is published on the world's event bus after every change.
type ScaleChanged struct {
	Entity ecs.EntityId
	Scale  float64
}

// Presenter displays the scale controls.
type Presenter interface {
	SetVisible(visible bool)
	SetText(text string)
}

type scaledModel struct {
	*component.GLTFModel
	Scale      *component.Scale      `ecs:"optional"`
	Visibility *component.Visibility `ecs:"optional"`
}

// System applies ScaleInput to every GLTFModel entity.
type System struct {
	presenter Presenter
	log       zerolog.Logger

	held     Direction
	heldFor  float64
	shown    bool
	lastText string

	Input  ecs.Singleton[ScaleInput]
	Models ecs.Query[scaledModel]
}

// New creates the system.
func New(presenter Presenter, log zerolog.Logger) *System {
	return &System{
		presenter: presenter,
		log:       log.With().Str("system", "model-scaling").Logger(),
	}
}

// delta returns the scale change for this frame.
func (s *System) delta(held Direction, dt float64) float64 {
	if held == None {
		s.held = None
		s.heldFor = 0
		return 0
	}
	if held != s.held {
		s.held = held
		s.heldFor = 0
		return float64(held) * Step
	}
	s.heldFor += dt
	if s.heldFor >= HoldDelay {
		return float64(held) * HoldStep
	}
	return 0
}

func (s *System) Execute(frame *ecs.UpdateFrame) {
	delta := s.delta(s.Input.Get().Held, frame.DeltaTime)

	visible := false
	text := ""
	for id, m := range s.Models.Iter() {
		scale := m.Scale
		if scale == nil {
			scale = ecs.GetOrAdd[component.Scale](frame.Storage, id)
		}
		current := uniform(scale)

		if delta != 0 {
			next := math.Max(MinScale, math.Round((current+delta)*1000)/1000)
			scale.SetLive(mgl64.Vec3{next, next, next})
			current = next
			ecs.Publish(frame.Events, ScaleChanged{Entity: id, Scale: next})
			s.log.Debug().Uint32("entity", uint32(id)).Float64("scale", next).Msg("model scaled")
		}

		if m.Visibility == nil || m.Visibility.Visible {
			if !visible {
				text = Label(current)
			}
			visible = true
		}
	}

	if visible != s.shown {
		s.presenter.SetVisible(visible)
		s.shown = visible
	}
	if visible && text != s.lastText {
		s.presenter.SetText(text)
		s.lastText = text
	}
}

// uniform reads the x component of the live or start scale, or 1.
func uniform(scale *component.Scale) float64 {
	return scale.Resolve().X()
}

// Label formats a scale as a percentage.
func Label(scale float64) string {
	return fmt.Sprintf("%d %%", int(math.Round(scale*100)))
}

// LogPresenter writes control changes to a logger.
type LogPresenter struct {
	Log zerolog.Logger
}

func (p LogPresenter) SetVisible(visible bool) {
	p.Log.Info().Bool("visible", visible).Str("hint", Hint).Msg("scale controls")
}

func (p LogPresenter) SetText(text string) {
	p.Log.Info().Str("scale", text).Msg("scale controls")
}
