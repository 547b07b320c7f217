package graphics

import (
	"context"

	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/content"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ModelRenderState is the render state of a GLTFModel entity.
type ModelRenderState struct {
	Model loader.Slot[*Model]
	Node  Node
	// NodeErr is set when the surface refused to create the node.
	NodeErr error
}

func modelSlot(s *ModelRenderState) *loader.Slot[*Model] {
	return &s.Model
}

type renderedModel struct {
	*component.GLTFModel
	Position    *component.Position    `ecs:"optional"`
	Orientation *component.Orientation `ecs:"optional"`
	Scale       *component.Scale       `ecs:"optional"`
	Visibility  *component.Visibility  `ecs:"optional"`
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the system logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *System) {
		s.log = log.With().Str("system", "graphics").Logger()
	}
}

// WithRetry overrides the retry policy for failed model fetches.
func WithRetry(policy loader.RetryPolicy) Option {
	return func(s *System) {
		s.retry = policy
	}
}

// System loads models and applies entity state to their nodes, then renders
// the surface. Register it after the systems that write poses.
type System struct {
	surface Surface
	fetcher content.Fetcher
	loader  *loader.Loader[*Model]
	retry   loader.RetryPolicy
	log     zerolog.Logger

	Models ecs.Query[renderedModel]
}

// NewSystem creates a render system for surface.
func NewSystem(surface Surface, fetcher content.Fetcher, opts ...Option) *System {
	s := &System{
		surface: surface,
		fetcher: fetcher,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = loader.New[*Model]("model", s.log)
	if s.retry != nil {
		s.loader.Retry = s.retry
	}
	return s
}

func (s *System) Execute(frame *ecs.UpdateFrame) {
	for id, m := range s.Models.Iter() {
		state := ecs.GetOrAdd[ModelRenderState](frame.Storage, id)
		if state.Node == nil && !s.attach(frame, id, m, state) {
			continue
		}
		apply(state.Node, m)
	}

	if err := s.surface.Render(); err != nil {
		s.log.Error().Err(err).Msg("render failed")
	}
}

// attach loads the model and creates the node, reporting whether the node
// exists now.
func (s *System) attach(frame *ecs.UpdateFrame, id ecs.EntityId, m renderedModel, state *ModelRenderState) bool {
	if state.NodeErr != nil {
		return false
	}

	model, ok := state.Model.Value()
	if !ok {
		cid := m.Model
		s.loader.Poll(frame, id, loader.In(id, modelSlot), func(ctx context.Context) (*Model, error) {
			data, err := s.fetcher.FetchBytes(ctx, cid)
			if err != nil {
				return nil, eris.Wrapf(err, "failed to fetch model %s", cid)
			}
			return DecodeModel(data)
		})
		return false
	}

	node, err := s.surface.CreateNode(id, model)
	if err != nil {
		state.NodeErr = err
		s.log.Error().Err(err).Uint32("entity", uint32(id)).Msg("failed to create model node")
		return false
	}
	state.Node = node
	s.log.Debug().Uint32("entity", uint32(id)).Str("cid", string(m.Model)).Msg("model attached")
	return true
}

func apply(node Node, m renderedModel) {
	node.SetPosition(m.Position.Resolve())
	node.SetOrientation(m.Orientation.Resolve())
	node.SetScale(m.Scale.Resolve())
	node.SetVisible(m.Visibility == nil || m.Visibility.Visible)
}

// Start renders one frame by hand, so setup-once systems run before the
// surface shows anything, then hands world updates to the surface loop.
func Start(ctx context.Context, world *ecs.World, surface Surface) error {
	world.Update()
	if err := surface.RunLoop(ctx, world.Update); err != nil {
		return eris.Wrap(err, "render loop stopped")
	}
	return nil
}
