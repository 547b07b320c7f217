// Package simxr is a scripted, in-process XR device. Tests and headless runs
// drive it by setting anchor, image, hit test and viewer state; systems see
// that state through the regular xr interfaces.
package simxr

import (
	"context"
	"image"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plus3/arworlds/xr"
	"github.com/rotisserie/eris"
)

// Option configures a Device.
type Option func(*Device)

// Unsupported makes the device reject every session mode.
func Unsupported() Option {
	return func(d *Device) {
		d.supported = false
	}
}

// WithFeatures restricts the features the device accepts.
func WithFeatures(features ...xr.Feature) Option {
	return func(d *Device) {
		d.features = features
	}
}

// WithAnchorError makes every anchor creation fail with err.
func WithAnchorError(err error) Option {
	return func(d *Device) {
		d.anchorErr = err
	}
}

// WithAnchorLatency delays anchor creation.
func WithAnchorLatency(latency time.Duration) Option {
	return func(d *Device) {
		d.anchorLatency = latency
	}
}

// Device is a simulated XR device.
type Device struct {
	supported     bool
	features      []xr.Feature
	anchorErr     error
	anchorLatency time.Duration

	mu      sync.Mutex
	session *Session
}

// New creates a device supporting every mode and feature.
func New(opts ...Option) *Device {
	d := &Device{
		supported: true,
		features: []xr.Feature{
			xr.FeatureAnchors,
			xr.FeatureImageTracking,
			xr.FeatureDOMOverlay,
			xr.FeatureHitTest,
			xr.FeatureCameraAccess,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) IsSessionSupported(ctx context.Context, mode xr.Mode) (bool, error) {
	return d.supported && mode == xr.ImmersiveAR, nil
}

func (d *Device) SupportedFeatures() []xr.Feature {
	return d.features
}

func (d *Device) EnterSession(ctx context.Context, config xr.SessionConfig) (xr.SessionHandle, error) {
	if !d.supported {
		return nil, xr.ErrUnsupported
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil && !d.session.Ended() {
		return nil, xr.ErrSessionStarted
	}

	d.session = &Session{
		id:            uuid.NewString(),
		config:        config,
		anchorErr:     d.anchorErr,
		anchorLatency: d.anchorLatency,
		anchors:       make(map[string]anchorState),
	}
	return d.session, nil
}

// Session returns the last session entered, or nil.
func (d *Device) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

type anchor struct {
	id string
}

func (a anchor) AnchorID() string { return a.id }

type hitTestSource struct {
	id string
}

func (h hitTestSource) SourceID() string { return h.id }

type anchorState struct {
	pose    xr.Pose
	tracked bool
}

// Session is a running simulated session.
type Session struct {
	id            string
	config        xr.SessionConfig
	anchorErr     error
	anchorLatency time.Duration

	mu          sync.Mutex
	ended       bool
	anchors     map[string]anchorState
	anchorOrder []string
	images      []xr.ImageTrackingResult
	hit         *xr.Pose
	viewer      *xr.Pose
	view        *xr.View
	camera      image.Image
	frames      int
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Config returns the configuration the session was entered with.
func (s *Session) Config() xr.SessionConfig { return s.config }

func (s *Session) CreateAnchor(ctx context.Context, pose xr.Pose) (xr.Anchor, error) {
	if s.anchorLatency > 0 {
		select {
		case <-time.After(s.anchorLatency):
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "anchor creation cancelled")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, xr.ErrSessionEnded
	}
	if s.anchorErr != nil {
		return nil, s.anchorErr
	}
	if _, ok := s.config.Option(xr.FeatureAnchors); !ok {
		return nil, eris.Wrap(xr.ErrUnsupported, "anchors feature not enabled")
	}

	a := anchor{id: uuid.NewString()}
	s.anchors[a.id] = anchorState{pose: pose, tracked: true}
	s.anchorOrder = append(s.anchorOrder, a.id)
	return a, nil
}

func (s *Session) RequestHitTestSource(ctx context.Context) (xr.HitTestSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, xr.ErrSessionEnded
	}
	if _, ok := s.config.Option(xr.FeatureHitTest); !ok {
		return nil, eris.Wrap(xr.ErrUnsupported, "hit-test feature not enabled")
	}
	return hitTestSource{id: uuid.NewString()}, nil
}

func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return xr.ErrSessionEnded
	}
	s.ended = true
	return nil
}

// Ended reports whether End was called.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Anchors returns the anchors created so far, oldest first.
func (s *Session) Anchors() []xr.Anchor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]xr.Anchor, 0, len(s.anchorOrder))
	for _, id := range s.anchorOrder {
		out = append(out, anchor{id: id})
	}
	return out
}

// SetAnchorPose moves an anchor and marks it tracked.
func (s *Session) SetAnchorPose(a xr.Anchor, pose xr.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[a.AnchorID()] = anchorState{pose: pose, tracked: true}
}

// LoseAnchor stops reporting an anchor's pose.
func (s *Session) LoseAnchor(a xr.Anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.anchors[a.AnchorID()]
	state.tracked = false
	s.anchors[a.AnchorID()] = state
}

// SetImageResult reports a tracking result for the image at index. A nil pose
// reports the image as known but not locatable.
func (s *Session) SetImageResult(index int, pose *xr.Pose, state xr.TrackingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = slices.DeleteFunc(s.images, func(r xr.ImageTrackingResult) bool { return r.Index == index })
	s.images = append(s.images, xr.ImageTrackingResult{Index: index, Pose: pose, State: state})
}

// ClearImageResults drops every image tracking result.
func (s *Session) ClearImageResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = nil
}

// SetHitTest sets the pose every hit test source reports, or none when nil.
func (s *Session) SetHitTest(pose *xr.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit = pose
}

// SetViewer sets the viewer pose and view.
func (s *Session) SetViewer(pose xr.Pose, view xr.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = &pose
	s.view = &view
}

// SetCameraImage sets the camera image exposed through camera access.
func (s *Session) SetCameraImage(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = img
}

// Frames returns how many frames were handed out.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// CurrentFrame snapshots the scripted state.
func (s *Session) CurrentFrame() xr.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.frames++

	f := &frame{
		anchors: make(map[string]xr.Pose, len(s.anchors)),
		images:  slices.Clone(s.images),
		hit:     s.hit,
		viewer:  s.viewer,
		view:    s.view,
		camera:  s.camera,
	}
	for id, state := range maps.All(s.anchors) {
		if state.tracked {
			f.anchors[id] = state.pose
		}
	}
	if _, ok := s.config.Option(xr.FeatureCameraAccess); !ok {
		f.camera = nil
	}
	return f
}

type frame struct {
	anchors map[string]xr.Pose
	images  []xr.ImageTrackingResult
	hit     *xr.Pose
	viewer  *xr.Pose
	view    *xr.View
	camera  image.Image
}

func (f *frame) AnchorPose(a xr.Anchor) (xr.Pose, bool) {
	pose, ok := f.anchors[a.AnchorID()]
	return pose, ok
}

func (f *frame) ImageTrackingResults() []xr.ImageTrackingResult {
	return f.images
}

func (f *frame) HitTestResults(source xr.HitTestSource) []xr.Pose {
	if f.hit == nil || source == nil {
		return nil
	}
	return []xr.Pose{*f.hit}
}

func (f *frame) ViewerPose() (xr.Pose, bool) {
	if f.viewer == nil {
		return xr.Pose{}, false
	}
	return *f.viewer, true
}

func (f *frame) View() (xr.View, bool) {
	if f.view == nil {
		return xr.View{}, false
	}
	return *f.view, true
}

func (f *frame) CameraImage() (image.Image, bool) {
	return f.camera, f.camera != nil
}
