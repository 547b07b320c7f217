// Package imagecapture measures the plane in front of the viewer with a hit
// test and, on request, cuts the centre of the camera image into a new image
// target sized to match.
package imagecapture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
	"github.com/plus3/arworlds/xr"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const (
	// NoPlaneText is shown while the hit test finds nothing.
	NoPlaneText = "No Plane Detected"

	cropWidth  = 0.75
	cropHeight = 0.25
)

// CaptureRequest is the singleton the capture control sets. The system clears
// it once handled.
type CaptureRequest struct {
	Requested bool
}

// ImageAnchorCaptured is published on the world's event bus with the PNG
// encoded crop and the physical width it covers.
type ImageAnchorCaptured struct {
	ImageBytes    []byte
	PhysicalWidth float64
}

// Presenter displays the measurement and the capture control.
type Presenter interface {
	SetText(text string)
	SetCaptureEnabled(enabled bool)
}

// System runs the measurement and capture.
type System struct {
	runtime   xr.Runtime
	presenter Presenter
	log       zerolog.Logger

	source       loader.Slot[xr.HitTestSource]
	sourceLoader *loader.Loader[xr.HitTestSource]

	width    float64
	hasWidth bool
	lastText string
	enabled  bool
	known    bool

	Request ecs.Singleton[CaptureRequest]
}

// New creates the system and registers it as a feature initializer of runtime.
func New(runtime xr.Runtime, presenter Presenter, log zerolog.Logger) *System {
	log = log.With().Str("system", "image-capture").Logger()
	s := &System{
		runtime:      runtime,
		presenter:    presenter,
		log:          log,
		sourceLoader: loader.New[xr.HitTestSource]("hit test source", log),
	}
	runtime.AddFeatureInitializer(s)
	return s
}

func (s *System) InitializeFeature(ctx context.Context, negotiator xr.FeatureNegotiator) error {
	for _, feature := range []xr.Feature{xr.FeatureDOMOverlay, xr.FeatureHitTest, xr.FeatureCameraAccess} {
		if err := negotiator.EnableFeature(feature, nil); err != nil {
			return eris.Wrapf(err, "failed to enable %s", feature)
		}
	}
	return nil
}

func (s *System) Execute(frame *ecs.UpdateFrame) {
	handle, ok := s.runtime.Handle()
	if !ok {
		return
	}

	source, ok := s.source.Value()
	if !ok {
		s.sourceLoader.Poll(frame, ecs.NoEntity, loader.Fixed(&s.source), handle.RequestHitTestSource)
		return
	}

	current := s.runtime.Frame()
	if current == nil {
		return
	}

	s.width, s.hasWidth = Measure(current, source)
	if s.hasWidth {
		s.show(fmt.Sprintf("%.3fm", s.width), true)
	} else {
		s.show(NoPlaneText, false)
	}

	request := s.Request.Get()
	if !request.Requested {
		return
	}
	request.Requested = false

	if !s.hasWidth {
		return
	}
	captured, err := Capture(current, s.width)
	if err != nil {
		s.log.Warn().Err(err).Msg("image capture failed")
		return
	}
	s.log.Info().Int("bytes", len(captured.ImageBytes)).Float64("width", captured.PhysicalWidth).Msg("image anchor captured")
	ecs.Publish(frame.Events, captured)
}

func (s *System) show(text string, enabled bool) {
	if text != s.lastText {
		s.presenter.SetText(text)
		s.lastText = text
	}
	if !s.known || enabled != s.enabled {
		s.presenter.SetCaptureEnabled(enabled)
		s.enabled = enabled
		s.known = true
	}
}

// Measure returns the physical width of the capture region on the plane the
// hit test reports, or false when there is no hit or view.
func Measure(frame xr.Frame, source xr.HitTestSource) (float64, bool) {
	hits := frame.HitTestResults(source)
	if len(hits) == 0 {
		return 0, false
	}
	viewer, ok := frame.ViewerPose()
	if !ok {
		return 0, false
	}
	view, ok := frame.View()
	if !ok {
		return 0, false
	}
	distance := hits[0].Position.Sub(viewer.Position).Len()
	return Width(view, distance), true
}

// Width is the width covered by the capture region at distance meters: the
// frustum height 2·tan(fov/2)·d, scaled by the 0.25 capture height and the
// view's aspect ratio, times three.
func Width(view xr.View, distance float64) float64 {
	return 2 * math.Tan(view.VerticalFOV/2) * distance * cropHeight * view.AspectRatio * 3
}

// Capture crops the current camera image and encodes it.
func Capture(frame xr.Frame, width float64) (ImageAnchorCaptured, error) {
	img, ok := frame.CameraImage()
	if !ok {
		return ImageAnchorCaptured{}, eris.New("camera image unavailable")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Crop(FlipVertical(img))); err != nil {
		return ImageAnchorCaptured{}, eris.Wrap(err, "failed to encode captured image")
	}
	return ImageAnchorCaptured{ImageBytes: buf.Bytes(), PhysicalWidth: width}, nil
}

// FlipVertical turns a camera texture, whose rows run bottom to top, into a
// top-down image.
func FlipVertical(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := image.Rect(0, b.Dy()-1-y, b.Dx(), b.Dy()-y)
		draw.Draw(dst, row, src, image.Pt(b.Min.X, b.Min.Y+y), draw.Src)
	}
	return dst
}

// Crop keeps the centred region covering 75% of the width and 25% of the
// height.
func Crop(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w := int(float64(b.Dx()) * cropWidth)
	h := int(float64(b.Dy()) * cropHeight)
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(x0, y0), draw.Src)
	return dst
}

// LogPresenter writes measurement changes to a logger.
type LogPresenter struct {
	Log zerolog.Logger
}

func (p LogPresenter) SetText(text string) {
	p.Log.Info().Str("text", text).Msg("image capture")
}

func (p LogPresenter) SetCaptureEnabled(enabled bool) {
	p.Log.Info().Bool("enabled", enabled).Msg("image capture")
}
