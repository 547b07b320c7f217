// Package xr describes the device session capability the AR systems consume:
// a Device that can enter a session, the features negotiated before entry and
// the per-frame data (anchor poses, image tracking, hit tests, camera) a
// running session exposes.
package xr

import (
	"context"
	"image"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rotisserie/eris"
)

var (
	// ErrUnsupported is returned when the device cannot run the requested
	// session mode or feature.
	ErrUnsupported = eris.New("xr session mode not supported")
	// ErrSessionNotStarted is returned by calls that need a running session.
	ErrSessionNotStarted = eris.New("xr session not started")
	// ErrSessionStarted is returned by Start when a session is already running.
	ErrSessionStarted = eris.New("xr session already started")
	// ErrSessionEnded is returned by handles whose session has ended.
	ErrSessionEnded = eris.New("xr session ended")
)

// Mode is a session mode.
type Mode string

const ImmersiveAR Mode = "immersive-ar"

// Feature names an optional session feature.
type Feature string

const (
	FeatureAnchors       Feature = "anchors"
	FeatureImageTracking Feature = "image-tracking"
	FeatureDOMOverlay    Feature = "dom-overlay"
	FeatureHitTest       Feature = "hit-test"
	FeatureCameraAccess  Feature = "camera-access"
)

// Pose is a rigid transform in the session's reference space.
type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// IdentityPose is the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: mgl64.QuatIdent()}
}

// TrackingState reports how an image tracking result was obtained.
type TrackingState string

const (
	Tracked  TrackingState = "tracked"
	Emulated TrackingState = "emulated"
	Limited  TrackingState = "limited"
)

// Usable reports whether a pose with this state should drive live values.
func (s TrackingState) Usable() bool {
	return s == Tracked || s == Emulated
}

// ImageTrackingResult is one tracked image in a frame. Index refers to the
// position of the image in the TrackedImages feature options. Pose is nil
// when the device knows the image but cannot currently locate it.
type ImageTrackingResult struct {
	Index int
	Pose  *Pose
	State TrackingState
}

// TrackedImage configures one image for the image tracking feature.
type TrackedImage struct {
	Image       image.Image
	WidthMeters float64
}

// TrackedImages is the options value of FeatureImageTracking.
type TrackedImages []TrackedImage

// View describes the first view of the viewer pose.
type View struct {
	VerticalFOV float64 // radians
	AspectRatio float64 // width / height
}

// Anchor is a device-tracked reference frame.
type Anchor interface {
	AnchorID() string
}

// HitTestSource is a registered hit test ray, cast from the viewer.
type HitTestSource interface {
	SourceID() string
}

// Frame is the device state for one rendered frame.
type Frame interface {
	AnchorPose(anchor Anchor) (Pose, bool)
	ImageTrackingResults() []ImageTrackingResult
	HitTestResults(source HitTestSource) []Pose
	ViewerPose() (Pose, bool)
	View() (View, bool)
	CameraImage() (image.Image, bool)
}

// SessionHandle is a running session.
type SessionHandle interface {
	// CurrentFrame returns the most recent frame, or nil before the first one.
	CurrentFrame() Frame
	CreateAnchor(ctx context.Context, pose Pose) (Anchor, error)
	RequestHitTestSource(ctx context.Context) (HitTestSource, error)
	End() error
}

// EnabledFeature is a feature with the options it was enabled with.
type EnabledFeature struct {
	Name    Feature
	Options any
}

// SessionConfig is the finalized configuration passed to a Device.
type SessionConfig struct {
	Mode           Mode
	ReferenceSpace string
	Features       []EnabledFeature
}

// Option returns the options of a feature and whether it is enabled.
func (c SessionConfig) Option(name Feature) (any, bool) {
	for _, f := range c.Features {
		if f.Name == name {
			return f.Options, true
		}
	}
	return nil, false
}

// Device is an XR runtime able to host sessions.
type Device interface {
	IsSessionSupported(ctx context.Context, mode Mode) (bool, error)
	SupportedFeatures() []Feature
	EnterSession(ctx context.Context, config SessionConfig) (SessionHandle, error)
}

// FeatureNegotiator collects the features systems need before the session starts.
type FeatureNegotiator interface {
	EnableFeature(name Feature, options any) error
	Enabled() []EnabledFeature
}

// FeatureInitializer is implemented by systems whose setup depends on the
// session's feature negotiation. Initializers run once, sequentially, before
// the session starts.
type FeatureInitializer interface {
	InitializeFeature(ctx context.Context, negotiator FeatureNegotiator) error
}

// Runtime is the view of a session that feature systems depend on.
type Runtime interface {
	AddFeatureInitializer(initializer FeatureInitializer)
	Handle() (SessionHandle, bool)
	// Frame returns the frame captured at the start of the current tick, or nil.
	Frame() Frame
}
