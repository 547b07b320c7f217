package anchor

import (
	"context"
	"time"

	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
	"github.com/plus3/arworlds/xr"
	"github.com/rs/zerolog"
)

// CreateState tracks the device anchor created for an IsAnchor entity.
type CreateState struct {
	Anchor loader.Slot[xr.Anchor]
}

func createSlot(s *CreateState) *loader.Slot[xr.Anchor] {
	return &s.Anchor
}

// Option configures a CreationSystem.
type Option func(*CreationSystem)

// WithLogger sets the logger used for creation failures.
func WithLogger(log zerolog.Logger) Option {
	return func(s *CreationSystem) {
		s.loader.Log = log.With().Str("system", "anchor-creation").Logger()
	}
}

// WithRetry overrides the retry policy for rejected anchor creations.
func WithRetry(policy loader.RetryPolicy) Option {
	return func(s *CreationSystem) {
		s.loader.Retry = policy
	}
}

// WithClock overrides the clock used to schedule retries.
func WithClock(now func() time.Time) Option {
	return func(s *CreationSystem) {
		s.loader.Now = now
	}
}

type anchorSource struct {
	*component.IsAnchor
	Position    *component.Position    `ecs:"optional"`
	Orientation *component.Orientation `ecs:"optional"`
}

// pose is where the device anchor is requested: the current position and
// orientation, or the origin and identity for a missing component.
func (e anchorSource) pose() xr.Pose {
	pose := xr.IdentityPose()
	if e.Position != nil {
		pose.Position = e.Position.Resolve()
	}
	if e.Orientation != nil {
		pose.Orientation = e.Orientation.Resolve()
	}
	return pose
}

func (e anchorSource) clearLive() {
	if e.Position != nil {
		e.Position.ClearLive()
	}
	if e.Orientation != nil {
		e.Orientation.ClearLive()
	}
}

// CreationSystem asks the device for an anchor at the pose of every IsAnchor
// entity, then mirrors the anchor's tracked pose into whichever of the
// entity's Position and Orientation exist. Live values are cleared on any
// frame the device cannot locate the anchor.
type CreationSystem struct {
	runtime xr.Runtime
	loader  *loader.Loader[xr.Anchor]

	Anchors ecs.Query[anchorSource]
}

// NewCreationSystem creates the system and registers it as a feature
// initializer of runtime, so the anchors feature is requested before the
// session starts.
func NewCreationSystem(runtime xr.Runtime, opts ...Option) *CreationSystem {
	s := &CreationSystem{
		runtime: runtime,
		loader:  loader.New[xr.Anchor]("anchor", zerolog.Nop()),
	}
	for _, opt := range opts {
		opt(s)
	}
	runtime.AddFeatureInitializer(s)
	return s
}

func (s *CreationSystem) InitializeFeature(ctx context.Context, negotiator xr.FeatureNegotiator) error {
	return negotiator.EnableFeature(xr.FeatureAnchors, nil)
}

func (s *CreationSystem) Execute(frame *ecs.UpdateFrame) {
	handle, ok := s.runtime.Handle()
	if !ok {
		return
	}
	current := s.runtime.Frame()

	for id, e := range s.Anchors.Iter() {
		state := ecs.GetOrAdd[CreateState](frame.Storage, id)
		if anchor, ok := state.Anchor.Value(); ok {
			s.track(current, anchor, e)
			continue
		}

		pose := e.pose()
		s.loader.Poll(frame, id, loader.In(id, createSlot), func(ctx context.Context) (xr.Anchor, error) {
			return handle.CreateAnchor(ctx, pose)
		})
	}
}

func (s *CreationSystem) track(current xr.Frame, anchor xr.Anchor, e anchorSource) {
	if current == nil {
		e.clearLive()
		return
	}
	pose, ok := current.AnchorPose(anchor)
	if !ok {
		e.clearLive()
		return
	}
	if e.Position != nil {
		e.Position.SetLive(pose.Position)
	}
	if e.Orientation != nil {
		e.Orientation.SetLive(pose.Orientation)
	}
}
