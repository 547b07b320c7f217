// Package wsxr is an XR device backed by a remote client over WebSocket. A
// browser or phone app connects, announces its capabilities, and then streams
// one frame message per rendered frame while answering anchor requests.
package wsxr

import (
	"context"
	_ "image/jpeg"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/plus3/arworlds/xr"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoClient is returned by EnterSession while no client is connected.
	ErrNoClient = eris.New("no xr client connected")
	// ErrClientConnected is the reason a second client is turned away.
	ErrClientConnected = eris.New("an xr client is already connected")
)

const outboxSize = 64

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log.With().Str("system", "wsxr").Logger()
	}
}

// WithWriteTimeout bounds every websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithCheckOrigin overrides the upgrader origin check. By default any
// origin is accepted.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// Server serves one XR client at a time and exposes it as an xr.Device.
type Server struct {
	log          zerolog.Logger
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	mu       sync.Mutex
	client   *client
	modes    []xr.Mode
	features []xr.Feature
	hello    chan struct{}
	helloed  bool
}

var _ xr.Device = (*Server)(nil)

// NewServer creates a server. Mount it on an http.ServeMux.
func NewServer(opts ...Option) *Server {
	s := &Server{
		log:          zerolog.Nop(),
		writeTimeout: 5 * time.Second,
		hello:        make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	busy := s.client != nil
	s.mu.Unlock()
	if busy {
		http.Error(w, ErrClientConnected.Error(), http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		server: s,
		conn:   conn,
		out:    make(chan Message, outboxSize),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrClientConnected.Error()))
		conn.Close()
		return
	}
	s.client = c
	s.mu.Unlock()

	s.log.Info().Str("remote", r.RemoteAddr).Msg("xr client connected")
	err = c.run(r.Context())

	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Msg("xr client disconnected")
	} else {
		s.log.Info().Msg("xr client disconnected")
	}
}

// IsSessionSupported waits for a client to announce its capabilities.
func (s *Server) IsSessionSupported(ctx context.Context, mode xr.Mode) (bool, error) {
	select {
	case <-s.hello:
	case <-ctx.Done():
		return false, eris.Wrap(ctx.Err(), "waiting for xr client")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.modes, mode), nil
}

// SupportedFeatures returns the features the last client announced.
func (s *Server) SupportedFeatures() []xr.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.features)
}

// EnterSession asks the connected client to enter a session.
func (s *Server) EnterSession(ctx context.Context, config xr.SessionConfig) (xr.SessionHandle, error) {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return nil, ErrNoClient
	}

	sess := &session{
		id:      uuid.NewString(),
		config:  config,
		client:  c,
		pending: make(map[uint64]chan anchorResult),
	}
	msg, err := newSessionMessage(sess.id, config)
	if err != nil {
		return nil, err
	}
	if err := c.attach(sess); err != nil {
		return nil, err
	}
	if err := c.send(ctx, Message{Type: TypeSession, Session: msg}); err != nil {
		c.detach(sess)
		return nil, err
	}
	return sess, nil
}

func (s *Server) setCapabilities(modes []xr.Mode, features []xr.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = modes
	s.features = features
	if !s.helloed {
		s.helloed = true
		close(s.hello)
	}
}

// client is one connection and its reader and writer pumps.
type client struct {
	server *Server
	conn   *websocket.Conn
	out    chan Message
	done   chan struct{}

	mu      sync.Mutex
	session *session
}

func (c *client) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return c.readPump()
	})
	g.Go(func() error {
		return c.writePump(ctx)
	})
	err := g.Wait()

	close(c.done)
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.mu.Unlock()
	if sess != nil {
		sess.terminate()
	}
	return err
}

func (c *client) readPump() error {
	log := c.server.log
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return eris.Wrap(err, "failed to read message")
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("dropping malformed message")
			continue
		}

		switch msg.Type {
		case TypeHello:
			c.server.setCapabilities(msg.Modes, msg.Features)
			log.Debug().Interface("features", msg.Features).Msg("xr client hello")
		case TypeFrame:
			if sess := c.current(); sess != nil && msg.Frame != nil {
				if err := sess.setFrame(msg.Frame); err != nil {
					log.Warn().Err(err).Msg("dropping frame")
				}
			}
		case TypeAnchorCreated:
			if sess := c.current(); sess != nil {
				sess.resolve(msg.Request, msg.AnchorID, msg.Error)
			}
		case TypeEnd:
			if sess := c.current(); sess != nil {
				c.detach(sess)
				sess.terminate()
			}
		default:
			log.Warn().Str("type", msg.Type).Msg("unknown message type")
		}
	}
}

func (c *client) writePump(ctx context.Context) error {
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.out:
			data, err := json.Marshal(msg)
			if err != nil {
				return eris.Wrapf(err, "failed to encode %s message", msg.Type)
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

func (c *client) write(kind int, data []byte) error {
	if c.server.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.writeTimeout))
	}
	if err := c.conn.WriteMessage(kind, data); err != nil {
		return eris.Wrap(err, "failed to write message")
	}
	return nil
}

func (c *client) send(ctx context.Context, msg Message) error {
	select {
	case c.out <- msg:
		return nil
	case <-c.done:
		return xr.ErrSessionEnded
	case <-ctx.Done():
		return eris.Wrapf(ctx.Err(), "sending %s message", msg.Type)
	}
}

func (c *client) attach(sess *session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return ErrNoClient
	default:
	}
	if c.session != nil {
		return xr.ErrSessionStarted
	}
	c.session = sess
	return nil
}

func (c *client) detach(sess *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == sess {
		c.session = nil
	}
}

func (c *client) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

type anchor struct {
	id string
}

func (a anchor) AnchorID() string { return a.id }

type hitTestSource struct {
	id string
}

func (h hitTestSource) SourceID() string { return h.id }

type anchorResult struct {
	anchor xr.Anchor
	err    error
}

// session is the handle of a session running on the connected client.
type session struct {
	id     string
	config xr.SessionConfig
	client *client

	mu      sync.Mutex
	ended   bool
	frame   *frame
	nextReq uint64
	pending map[uint64]chan anchorResult
}

func (s *session) CurrentFrame() xr.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended || s.frame == nil {
		return nil
	}
	return s.frame
}

func (s *session) CreateAnchor(ctx context.Context, pose xr.Pose) (xr.Anchor, error) {
	if _, ok := s.config.Option(xr.FeatureAnchors); !ok {
		return nil, eris.Wrap(xr.ErrUnsupported, "anchors feature not enabled")
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil, xr.ErrSessionEnded
	}
	s.nextReq++
	req := s.nextReq
	ch := make(chan anchorResult, 1)
	s.pending[req] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, req)
		s.mu.Unlock()
	}()

	p := NewPoseMessage(pose)
	if err := s.client.send(ctx, Message{Type: TypeCreateAnchor, Request: req, Pose: &p}); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.anchor, res.err
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "anchor creation cancelled")
	}
}

// RequestHitTestSource registers a viewer ray. The client reports its hits
// with every frame.
func (s *session) RequestHitTestSource(ctx context.Context) (xr.HitTestSource, error) {
	if _, ok := s.config.Option(xr.FeatureHitTest); !ok {
		return nil, eris.Wrap(xr.ErrUnsupported, "hit-test feature not enabled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, xr.ErrSessionEnded
	}
	return hitTestSource{id: uuid.NewString()}, nil
}

func (s *session) End() error {
	s.mu.Lock()
	ended := s.ended
	s.mu.Unlock()
	if ended {
		return xr.ErrSessionEnded
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.client.send(ctx, Message{Type: TypeEnd})
	s.client.detach(s)
	s.terminate()
	if err != nil && !eris.Is(err, xr.ErrSessionEnded) {
		return err
	}
	return nil
}

func (s *session) setFrame(m *FrameMessage) error {
	_, camera := s.config.Option(xr.FeatureCameraAccess)
	f, err := decodeFrame(m, camera)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.frame = f
	}
	return nil
}

func (s *session) resolve(req uint64, id, errMsg string) {
	s.mu.Lock()
	ch, ok := s.pending[req]
	s.mu.Unlock()
	if !ok {
		return
	}
	var res anchorResult
	switch {
	case errMsg != "":
		res.err = eris.Errorf("client rejected anchor: %s", errMsg)
	case id == "":
		res.err = eris.New("client returned an empty anchor id")
	default:
		res.anchor = anchor{id: id}
	}
	// Duplicate replies are dropped.
	select {
	case ch <- res:
	default:
	}
}

// terminate ends the session locally and fails pending anchor requests.
func (s *session) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.frame = nil
	for req, ch := range s.pending {
		select {
		case ch <- anchorResult{err: xr.ErrSessionEnded}:
		default:
		}
		delete(s.pending, req)
	}
}
