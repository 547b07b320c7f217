package wsxr

import (
	"bytes"
	"image"
	"image/png"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/xr"
	"github.com/rotisserie/eris"
)

// Message types. The client sends hello, frame, anchor-created and end; the
// server sends session, create-anchor and end.
const (
	TypeHello         = "hello"
	TypeFrame         = "frame"
	TypeAnchorCreated = "anchor-created"
	TypeSession       = "session"
	TypeCreateAnchor  = "create-anchor"
	TypeEnd           = "end"
)

// Message is the JSON envelope of every message. Only the fields of its Type
// are set.
type Message struct {
	Type string `json:"type"`

	// hello
	Modes    []xr.Mode    `json:"modes,omitempty"`
	Features []xr.Feature `json:"features,omitempty"`

	// session
	Session *SessionMessage `json:"session,omitempty"`

	// frame
	Frame *FrameMessage `json:"frame,omitempty"`

	// create-anchor, anchor-created
	Request  uint64       `json:"request,omitempty"`
	Pose     *PoseMessage `json:"pose,omitempty"`
	AnchorID string       `json:"anchor_id,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// SessionMessage tells the client which session to enter.
type SessionMessage struct {
	ID             string         `json:"id"`
	Mode           xr.Mode        `json:"mode"`
	ReferenceSpace string         `json:"reference_space"`
	Features       []xr.Feature   `json:"features"`
	TrackedImages  []ImageMessage `json:"tracked_images,omitempty"`
}

// ImageMessage is a tracked image target, PNG encoded.
type ImageMessage struct {
	Index       int     `json:"index"`
	WidthMeters float64 `json:"width_meters"`
	PNG         []byte  `json:"png"`
}

// PoseMessage is a pose with the orientation in x, y, z, w order.
type PoseMessage struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

// FrameMessage is the device state of one frame.
type FrameMessage struct {
	Anchors map[string]PoseMessage `json:"anchors,omitempty"`
	Images  []ImageResultMessage   `json:"images,omitempty"`
	Hits    []PoseMessage          `json:"hits,omitempty"`
	Viewer  *PoseMessage           `json:"viewer,omitempty"`
	View    *ViewMessage           `json:"view,omitempty"`
	Camera  []byte                 `json:"camera,omitempty"` // PNG or JPEG
}

type ImageResultMessage struct {
	Index int              `json:"index"`
	Pose  *PoseMessage     `json:"pose,omitempty"`
	State xr.TrackingState `json:"state"`
}

type ViewMessage struct {
	VerticalFOV float64 `json:"vertical_fov"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// NewPoseMessage encodes a pose.
func NewPoseMessage(p xr.Pose) PoseMessage {
	return PoseMessage{
		Position:    [3]float64(p.Position),
		Orientation: [4]float64{p.Orientation.X(), p.Orientation.Y(), p.Orientation.Z(), p.Orientation.W},
	}
}

// Pose decodes the message. A zero orientation decodes as identity.
func (m PoseMessage) Pose() xr.Pose {
	q := mgl64.Quat{W: m.Orientation[3], V: mgl64.Vec3{m.Orientation[0], m.Orientation[1], m.Orientation[2]}}
	if q.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	return xr.Pose{Position: mgl64.Vec3(m.Position), Orientation: q.Normalize()}
}

func newSessionMessage(id string, config xr.SessionConfig) (*SessionMessage, error) {
	msg := &SessionMessage{
		ID:             id,
		Mode:           config.Mode,
		ReferenceSpace: config.ReferenceSpace,
	}
	for _, f := range config.Features {
		msg.Features = append(msg.Features, f.Name)
	}

	opts, _ := config.Option(xr.FeatureImageTracking)
	images, _ := opts.(xr.TrackedImages)
	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img.Image); err != nil {
			return nil, eris.Wrapf(err, "failed to encode tracked image %d", i)
		}
		msg.TrackedImages = append(msg.TrackedImages, ImageMessage{
			Index:       i,
			WidthMeters: img.WidthMeters,
			PNG:         buf.Bytes(),
		})
	}
	return msg, nil
}

func decodeFrame(m *FrameMessage, camera bool) (*frame, error) {
	f := &frame{anchors: make(map[string]xr.Pose, len(m.Anchors))}
	for id, pose := range m.Anchors {
		f.anchors[id] = pose.Pose()
	}
	for _, r := range m.Images {
		result := xr.ImageTrackingResult{Index: r.Index, State: r.State}
		if r.Pose != nil {
			pose := r.Pose.Pose()
			result.Pose = &pose
		}
		f.images = append(f.images, result)
	}
	for _, hit := range m.Hits {
		f.hits = append(f.hits, hit.Pose())
	}
	if m.Viewer != nil {
		pose := m.Viewer.Pose()
		f.viewer = &pose
	}
	if m.View != nil {
		f.view = &xr.View{VerticalFOV: m.View.VerticalFOV, AspectRatio: m.View.AspectRatio}
	}
	if camera && len(m.Camera) > 0 {
		img, _, err := image.Decode(bytes.NewReader(m.Camera))
		if err != nil {
			return nil, eris.Wrap(err, "failed to decode camera image")
		}
		f.camera = img
	}
	return f, nil
}

type frame struct {
	anchors map[string]xr.Pose
	images  []xr.ImageTrackingResult
	hits    []xr.Pose
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

// HitTestResults returns the frame's hits for any source; the client casts a
// single viewer ray.
func (f *frame) HitTestResults(source xr.HitTestSource) []xr.Pose {
	if source == nil {
		return nil
	}
	return f.hits
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
