package wsxr_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/plus3/arworlds/xr"
	"github.com/plus3/arworlds/xr/wsxr"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv *wsxr.Server
	url string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := wsxr.NewServer()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, url: "ws" + strings.TrimPrefix(ts.URL, "http")}
}

// connect dials the server and completes the hello exchange.
func (f *fixture) connect(t *testing.T, features ...xr.Feature) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	send(t, conn, wsxr.Message{Type: wsxr.TypeHello, Modes: []xr.Mode{xr.ImmersiveAR}, Features: features})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := f.srv.IsSessionSupported(ctx, xr.ImmersiveAR)
	require.NoError(t, err)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return len(f.srv.SupportedFeatures()) == len(features)
	}, time.Second, 5*time.Millisecond)
	return conn
}

func (f *fixture) enter(t *testing.T, conn *websocket.Conn, features ...xr.EnabledFeature) (xr.SessionHandle, *wsxr.SessionMessage) {
	t.Helper()
	handle, err := f.srv.EnterSession(context.Background(), xr.SessionConfig{
		Mode:           xr.ImmersiveAR,
		ReferenceSpace: "local",
		Features:       features,
	})
	require.NoError(t, err)

	msg := receive(t, conn)
	require.Equal(t, wsxr.TypeSession, msg.Type)
	require.NotNil(t, msg.Session)
	return handle, msg.Session
}

func send(t *testing.T, conn *websocket.Conn, msg wsxr.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func receive(t *testing.T, conn *websocket.Conn) wsxr.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wsxr.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func pose(x, y, z float64) xr.Pose {
	return xr.Pose{Position: mgl64.Vec3{x, y, z}, Orientation: mgl64.QuatIdent()}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSupportWaitsForHello(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.srv.IsSessionSupported(ctx, xr.ImmersiveAR)
	assert.Error(t, err)

	f.connect(t, xr.FeatureAnchors, xr.FeatureHitTest)
	assert.Equal(t, []xr.Feature{xr.FeatureAnchors, xr.FeatureHitTest}, f.srv.SupportedFeatures())

	ok, err := f.srv.IsSessionSupported(context.Background(), xr.Mode("inline"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnterWithoutClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.srv.EnterSession(context.Background(), xr.SessionConfig{Mode: xr.ImmersiveAR})
	assert.True(t, eris.Is(err, wsxr.ErrNoClient))
}

func TestSecondClientRejected(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

type initializerFunc func(ctx context.Context, n xr.FeatureNegotiator) error

func (f initializerFunc) InitializeFeature(ctx context.Context, n xr.FeatureNegotiator) error {
	return f(ctx, n)
}

func TestSessionStartAndFrames(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, xr.FeatureAnchors, xr.FeatureImageTracking, xr.FeatureCameraAccess)

	target, err := png.Decode(bytes.NewReader(pngBytes(t, 4, 2)))
	require.NoError(t, err)

	session := xr.NewSession(f.srv)
	session.AddFeatureInitializer(initializerFunc(func(ctx context.Context, n xr.FeatureNegotiator) error {
		if err := n.EnableFeature(xr.FeatureAnchors, nil); err != nil {
			return err
		}
		if err := n.EnableFeature(xr.FeatureCameraAccess, nil); err != nil {
			return err
		}
		return n.EnableFeature(xr.FeatureImageTracking, xr.TrackedImages{{Image: target, WidthMeters: 0.3}})
	}))

	started := make(chan error, 1)
	go func() { started <- session.Start(context.Background()) }()

	msg := receive(t, conn)
	require.Equal(t, wsxr.TypeSession, msg.Type)
	assert.Equal(t, xr.ImmersiveAR, msg.Session.Mode)
	assert.Equal(t, []xr.Feature{xr.FeatureAnchors, xr.FeatureCameraAccess, xr.FeatureImageTracking}, msg.Session.Features)
	require.Len(t, msg.Session.TrackedImages, 1)
	assert.InDelta(t, 0.3, msg.Session.TrackedImages[0].WidthMeters, 1e-9)
	decoded, err := png.Decode(bytes.NewReader(msg.Session.TrackedImages[0].PNG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), decoded.Bounds())

	require.NoError(t, <-started)
	handle, ok := session.Handle()
	require.True(t, ok)
	assert.Nil(t, handle.CurrentFrame())

	imagePose := wsxr.NewPoseMessage(pose(0, 0, -1))
	viewer := wsxr.NewPoseMessage(pose(0, 1.6, 0))
	send(t, conn, wsxr.Message{Type: wsxr.TypeFrame, Frame: &wsxr.FrameMessage{
		Images: []wsxr.ImageResultMessage{
			{Index: 0, Pose: &imagePose, State: xr.Tracked},
			{Index: 1, State: xr.Limited},
		},
		Viewer: &viewer,
		View:   &wsxr.ViewMessage{VerticalFOV: 1.2, AspectRatio: 0.5},
		Camera: pngBytes(t, 8, 6),
	}})

	require.Eventually(t, func() bool { return handle.CurrentFrame() != nil }, 2*time.Second, 5*time.Millisecond)
	frame := handle.CurrentFrame()

	results := frame.ImageTrackingResults()
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Pose)
	assert.Equal(t, mgl64.Vec3{0, 0, -1}, results[0].Pose.Position)
	assert.Nil(t, results[1].Pose)
	assert.Equal(t, xr.Limited, results[1].State)

	vp, ok := frame.ViewerPose()
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0, 1.6, 0}, vp.Position)
	view, ok := frame.View()
	require.True(t, ok)
	assert.Equal(t, xr.View{VerticalFOV: 1.2, AspectRatio: 0.5}, view)

	camera, ok := frame.CameraImage()
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 8, 6), camera.Bounds())
}

func TestCreateAnchor(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, xr.FeatureAnchors)
	handle, _ := f.enter(t, conn, xr.EnabledFeature{Name: xr.FeatureAnchors})

	type result struct {
		anchor xr.Anchor
		err    error
	}
	create := func() <-chan result {
		out := make(chan result, 1)
		go func() {
			a, err := handle.CreateAnchor(context.Background(), pose(1, 2, 3))
			out <- result{a, err}
		}()
		return out
	}

	done := create()
	req := receive(t, conn)
	require.Equal(t, wsxr.TypeCreateAnchor, req.Type)
	require.NotNil(t, req.Pose)
	assert.Equal(t, [3]float64{1, 2, 3}, req.Pose.Position)
	assert.Equal(t, [4]float64{0, 0, 0, 1}, req.Pose.Orientation)

	send(t, conn, wsxr.Message{Type: wsxr.TypeAnchorCreated, Request: req.Request, AnchorID: "anchor-1"})
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "anchor-1", res.anchor.AnchorID())

	moved := wsxr.NewPoseMessage(pose(1, 2, 4))
	send(t, conn, wsxr.Message{Type: wsxr.TypeFrame, Frame: &wsxr.FrameMessage{
		Anchors: map[string]wsxr.PoseMessage{"anchor-1": moved},
	}})
	require.Eventually(t, func() bool { return handle.CurrentFrame() != nil }, 2*time.Second, 5*time.Millisecond)
	p, ok := handle.CurrentFrame().AnchorPose(res.anchor)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{1, 2, 4}, p.Position)

	t.Run("rejected by the client", func(t *testing.T) {
		done := create()
		req := receive(t, conn)
		send(t, conn, wsxr.Message{Type: wsxr.TypeAnchorCreated, Request: req.Request, Error: "tracking lost"})
		res := <-done
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "tracking lost")
	})
}

func TestFeaturesNotEnabled(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t)
	handle, _ := f.enter(t, conn)

	_, err := handle.CreateAnchor(context.Background(), pose(0, 0, 0))
	assert.True(t, eris.Is(err, xr.ErrUnsupported))
	_, err = handle.RequestHitTestSource(context.Background())
	assert.True(t, eris.Is(err, xr.ErrUnsupported))
}

func TestHitTest(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, xr.FeatureHitTest)
	handle, _ := f.enter(t, conn, xr.EnabledFeature{Name: xr.FeatureHitTest})

	source, err := handle.RequestHitTestSource(context.Background())
	require.NoError(t, err)

	send(t, conn, wsxr.Message{Type: wsxr.TypeFrame, Frame: &wsxr.FrameMessage{
		Hits: []wsxr.PoseMessage{wsxr.NewPoseMessage(pose(0, -1, -2))},
	}})
	require.Eventually(t, func() bool { return handle.CurrentFrame() != nil }, 2*time.Second, 5*time.Millisecond)

	hits := handle.CurrentFrame().HitTestResults(source)
	require.Len(t, hits, 1)
	assert.Equal(t, mgl64.Vec3{0, -1, -2}, hits[0].Position)
	assert.Nil(t, handle.CurrentFrame().HitTestResults(nil))
}

func TestEnd(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, xr.FeatureAnchors)
	handle, _ := f.enter(t, conn, xr.EnabledFeature{Name: xr.FeatureAnchors})

	require.NoError(t, handle.End())
	assert.Equal(t, wsxr.TypeEnd, receive(t, conn).Type)

	assert.True(t, eris.Is(handle.End(), xr.ErrSessionEnded))
	_, err := handle.CreateAnchor(context.Background(), pose(0, 0, 0))
	assert.True(t, eris.Is(err, xr.ErrSessionEnded))

	// The client stays connected and can enter a new session.
	f.enter(t, conn)
}

func TestClientEndsSession(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t)
	handle, _ := f.enter(t, conn)

	_, err := f.srv.EnterSession(context.Background(), xr.SessionConfig{})
	require.True(t, eris.Is(err, xr.ErrSessionStarted))

	send(t, conn, wsxr.Message{Type: wsxr.TypeEnd})
	require.Eventually(t, func() bool {
		_, err := f.srv.EnterSession(context.Background(), xr.SessionConfig{})
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, eris.Is(handle.End(), xr.ErrSessionEnded))
}

func TestDisconnectFailsPendingAnchors(t *testing.T) {
	f := newFixture(t)
	conn := f.connect(t, xr.FeatureAnchors)
	handle, _ := f.enter(t, conn, xr.EnabledFeature{Name: xr.FeatureAnchors})

	done := make(chan error, 1)
	go func() {
		_, err := handle.CreateAnchor(context.Background(), pose(0, 0, 0))
		done <- err
	}()
	require.Equal(t, wsxr.TypeCreateAnchor, receive(t, conn).Type)
	require.NoError(t, conn.Close())

	select {
	case err := <-done:
		assert.True(t, eris.Is(err, xr.ErrSessionEnded))
	case <-time.After(2 * time.Second):
		t.Fatal("pending anchor request was not failed")
	}
	assert.Nil(t, handle.CurrentFrame())

	require.Eventually(t, func() bool {
		_, err := f.srv.EnterSession(context.Background(), xr.SessionConfig{})
		return eris.Is(err, wsxr.ErrNoClient)
	}, 2*time.Second, 5*time.Millisecond)
}
