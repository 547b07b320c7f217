// Package coaching shows instructions, with slides of the images to look for,
// until the device recognizes one of the tracked images an overlay references.
package coaching

import (
	"context"

	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/content"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/xr"
	"github.com/rs/zerolog"
)

// Slides is the content of one overlay.
type Slides struct {
	Text string
	// URLs address the referenced tracked images, in reference order.
	URLs []string
	// Navigation is set when there is more than one slide to page through.
	Navigation bool
}

// Presenter displays overlays. Calls happen on the frame loop.
type Presenter interface {
	Publish(overlay ecs.EntityId, slides Slides)
	SetVisible(overlay ecs.EntityId, visible bool)
}

// Linker turns a content id into a URL a presenter can load.
type Linker interface {
	URL(id content.ID) string
}

type overlayState struct {
	published bool
	shown     bool
	known     bool
}

type coachingOverlay struct {
	*component.CoachingOverlay
}

// System drives every CoachingOverlay entity. Slides are published the first
// frame an overlay is seen; its visibility is derived every frame and pushed
// to the presenter when it changes.
type System struct {
	presenter Presenter
	links     Linker
	log       zerolog.Logger
	overlays  map[ecs.EntityId]*overlayState

	Overlays ecs.Query[coachingOverlay]
}

// New creates the system. runtime may be nil when no XR session is involved;
// otherwise the system requests the DOM overlay feature.
func New(runtime xr.Runtime, presenter Presenter, links Linker, log zerolog.Logger) *System {
	s := &System{
		presenter: presenter,
		links:     links,
		log:       log.With().Str("system", "coaching").Logger(),
		overlays:  make(map[ecs.EntityId]*overlayState),
	}
	if runtime != nil {
		runtime.AddFeatureInitializer(s)
	}
	return s
}

func (s *System) InitializeFeature(ctx context.Context, negotiator xr.FeatureNegotiator) error {
	return negotiator.EnableFeature(xr.FeatureDOMOverlay, nil)
}

func (s *System) Execute(frame *ecs.UpdateFrame) {
	for id, e := range s.Overlays.Iter() {
		state, ok := s.overlays[id]
		if !ok {
			state = &overlayState{}
			s.overlays[id] = state
		}

		if !state.published {
			s.presenter.Publish(id, s.slides(frame.Storage, e.CoachingOverlay))
			state.published = true
		}

		show := !Found(frame.Storage, e.CoachingOverlay)
		if !state.known || state.shown != show {
			s.presenter.SetVisible(id, show)
			state.known = true
			state.shown = show
			s.log.Debug().Uint32("overlay", uint32(id)).Bool("visible", show).Msg("coaching overlay toggled")
		}
	}
}

func (s *System) slides(storage *ecs.Storage, overlay *component.CoachingOverlay) Slides {
	slides := Slides{Text: overlay.Text}
	for _, id := range overlay.TrackedImages {
		image := ecs.ReadComponent[component.TrackedImage](storage, id)
		if image == nil || image.Image.IsZero() {
			continue
		}
		slides.URLs = append(slides.URLs, s.links.URL(image.Image))
	}
	slides.Navigation = len(slides.URLs) > 1
	return slides
}

// Found reports whether any tracked image the overlay references currently
// has a live position.
func Found(storage *ecs.Storage, overlay *component.CoachingOverlay) bool {
	for _, id := range overlay.TrackedImages {
		if pos := ecs.ReadComponent[component.Position](storage, id); pos != nil && pos.Live != nil {
			return true
		}
	}
	return false
}

// LogPresenter writes overlay changes to a logger. It stands in for a real
// overlay in headless runs.
type LogPresenter struct {
	Log zerolog.Logger
}

func (p LogPresenter) Publish(overlay ecs.EntityId, slides Slides) {
	p.Log.Info().
		Uint32("overlay", uint32(overlay)).
		Str("text", slides.Text).
		Strs("slides", slides.URLs).
		Bool("navigation", slides.Navigation).
		Msg("coaching overlay published")
}

func (p LogPresenter) SetVisible(overlay ecs.EntityId, visible bool) {
	p.Log.Info().Uint32("overlay", uint32(overlay)).Bool("visible", visible).Msg("coaching overlay")
}
