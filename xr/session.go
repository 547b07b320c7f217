package xr

import (
	"context"
	"fmt"
	"sync"

	"github.com/plus3/arworlds/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMode overrides the session mode, ImmersiveAR by default.
func WithMode(mode Mode) SessionOption {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithReferenceSpace overrides the reference space, "local" by default.
func WithReferenceSpace(space string) SessionOption {
	return func(s *Session) {
		s.referenceSpace = space
	}
}

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log
	}
}

// Session owns the lifecycle of one XR session. It is registered as a system
// so that, at the start of every tick, it captures the device's current
// frame; systems registered after it all observe the same frame.
type Session struct {
	device         Device
	mode           Mode
	referenceSpace string
	log            zerolog.Logger
	negotiator     *Negotiator

	mu           sync.Mutex
	initializers []FeatureInitializer
	handle       SessionHandle
	starting     bool
	ready        chan struct{}

	frame Frame
}

// NewSession creates a session bound to a device. Nothing happens on the
// device until Start.
func NewSession(device Device, opts ...SessionOption) *Session {
	s := &Session{
		device:         device,
		mode:           ImmersiveAR,
		referenceSpace: "local",
		log:            zerolog.Nop(),
		ready:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.negotiator = NewNegotiator()
	return s
}

// IsSupported asks the device whether it can run the session mode.
func (s *Session) IsSupported(ctx context.Context) (bool, error) {
	ok, err := s.device.IsSessionSupported(ctx, s.mode)
	if err != nil {
		return false, eris.Wrapf(err, "failed to query support for %s", s.mode)
	}
	return ok, nil
}

// AddFeatureInitializer registers an initializer to run during Start.
func (s *Session) AddFeatureInitializer(initializer FeatureInitializer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initializers = append(s.initializers, initializer)
}

// FeatureNegotiator returns the negotiator initializers enable features on.
func (s *Session) FeatureNegotiator() FeatureNegotiator {
	return s.negotiator
}

// Start runs every feature initializer in registration order, then enters the
// session with the negotiated features. It fails with ErrUnsupported when the
// device cannot run the mode, and aborts on the first initializer error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.starting || s.handle != nil {
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.starting = true
	initializers := append([]FeatureInitializer(nil), s.initializers...)
	s.mu.Unlock()

	handle, err := s.start(ctx, initializers)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		return err
	}
	s.handle = handle
	close(s.ready)
	return nil
}

func (s *Session) start(ctx context.Context, initializers []FeatureInitializer) (SessionHandle, error) {
	supported, err := s.IsSupported(ctx)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, eris.Wrapf(ErrUnsupported, "mode %s", s.mode)
	}
	// Devices may only know their features once they are reachable.
	s.negotiator.Restrict(s.device.SupportedFeatures()...)

	for _, initializer := range initializers {
		name := fmt.Sprintf("%T", initializer)
		if err := initializer.InitializeFeature(ctx, s.negotiator); err != nil {
			return nil, eris.Wrapf(err, "failed to initialize feature system %s", name)
		}
		s.log.Debug().Str("initializer", name).Msg("feature initialized")
	}

	config := SessionConfig{
		Mode:           s.mode,
		ReferenceSpace: s.referenceSpace,
		Features:       s.negotiator.Enabled(),
	}
	handle, err := s.device.EnterSession(ctx, config)
	if err != nil {
		return nil, eris.Wrap(err, "failed to enter xr session")
	}

	features := make([]string, 0, len(config.Features))
	for _, f := range config.Features {
		features = append(features, string(f.Name))
	}
	s.log.Info().Str("mode", string(s.mode)).Strs("features", features).Msg("xr session started")
	return handle, nil
}

// Handle returns the running session, if Start has completed.
func (s *Session) Handle() (SessionHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.handle != nil
}

// WaitHandle blocks until Start completes or ctx is done.
func (s *Session) WaitHandle(ctx context.Context) (SessionHandle, error) {
	select {
	case <-s.ready:
		handle, _ := s.Handle()
		return handle, nil
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "waiting for xr session")
	}
}

// Frame returns the frame captured at the start of the current tick.
func (s *Session) Frame() Frame {
	return s.frame
}

// Execute captures the device's current frame for this tick.
func (s *Session) Execute(frame *ecs.UpdateFrame) {
	handle, ok := s.Handle()
	if !ok {
		s.frame = nil
		return
	}
	s.frame = handle.CurrentFrame()
}

// End terminates the running session.
func (s *Session) End() error {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()

	if handle == nil {
		return ErrSessionNotStarted
	}
	if err := handle.End(); err != nil {
		return eris.Wrap(err, "failed to end xr session")
	}
	return nil
}
