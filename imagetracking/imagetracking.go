// Package imagetracking loads the bitmaps of TrackedImage entities, registers
// them with the image tracking feature and mirrors each recognized image's
// pose into its entity's live Position and Orientation.
package imagetracking

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"slices"
	"sync"

	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/content"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
	"github.com/plus3/arworlds/xr"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// ImageLoadState holds the decoded bitmap of a TrackedImage entity.
type ImageLoadState struct {
	Bitmap loader.Slot[image.Image]
}

func bitmapSlot(s *ImageLoadState) *loader.Slot[image.Image] {
	return &s.Bitmap
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the system logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *System) {
		s.log = log.With().Str("system", "image-tracking").Logger()
	}
}

// WithRetry overrides the retry policy for failed bitmap fetches.
func WithRetry(policy loader.RetryPolicy) Option {
	return func(s *System) {
		s.retry = policy
	}
}

type trackedImage struct {
	*component.TrackedImage
}

// System is both the bitmap loader and the image tracking feature
// initializer. The initializer waits until the system has run once, so every
// TrackedImage entity present at that point has a load in flight, then waits
// for those loads and enables image tracking with the images that decoded.
// Images that failed to load are left out of the session.
type System struct {
	runtime xr.Runtime
	fetcher content.Fetcher
	loader  *loader.Loader[image.Image]
	log     zerolog.Logger
	retry   loader.RetryPolicy

	primed     chan struct{}
	primedOnce sync.Once

	mu      sync.Mutex
	futures map[ecs.EntityId]*future
	order   []ecs.EntityId
	indices []ecs.EntityId

	Images ecs.Query[trackedImage]
}

// New creates the system and registers it as a feature initializer of runtime.
func New(runtime xr.Runtime, fetcher content.Fetcher, opts ...Option) *System {
	s := &System{
		runtime: runtime,
		fetcher: fetcher,
		log:     zerolog.Nop(),
		primed:  make(chan struct{}),
		futures: make(map[ecs.EntityId]*future),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loader = loader.New[image.Image]("tracked image", s.log)
	if s.retry != nil {
		s.loader.Retry = s.retry
	}
	runtime.AddFeatureInitializer(s)
	return s
}

func (s *System) Execute(frame *ecs.UpdateFrame) {
	for id, e := range s.Images.Iter() {
		s.poll(frame, id, *e.TrackedImage)
	}
	s.primedOnce.Do(func() { close(s.primed) })

	s.track(frame.Storage)
}

func (s *System) poll(frame *ecs.UpdateFrame, id ecs.EntityId, target component.TrackedImage) {
	if target.Image.IsZero() {
		return
	}
	f := s.future(id, target.PhysicalWidthMeters)
	s.loader.Poll(frame, id, loader.In(id, bitmapSlot), func(ctx context.Context) (image.Image, error) {
		img, err := s.fetchImage(ctx, target.Image)
		f.resolve(img, err)
		return img, err
	})
}

func (s *System) future(id ecs.EntityId, width float64) *future {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.futures[id]
	if !ok {
		f = newFuture(width)
		s.futures[id] = f
		s.order = append(s.order, id)
	}
	return f
}

func (s *System) fetchImage(ctx context.Context, id content.ID) (image.Image, error) {
	data, err := s.fetcher.FetchBytes(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to fetch tracked image %s", id)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decode tracked image %s", id)
	}
	s.log.Debug().Str("cid", string(id)).Str("format", format).Msg("decoded tracked image")
	return img, nil
}

func (s *System) InitializeFeature(ctx context.Context, negotiator xr.FeatureNegotiator) error {
	select {
	case <-s.primed:
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "waiting for the first tick")
	}

	s.mu.Lock()
	ids := slices.Clone(s.order)
	futures := make([]*future, len(ids))
	for i, id := range ids {
		futures[i] = s.futures[id]
	}
	s.mu.Unlock()

	results := make([]result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		g.Go(func() error {
			r, err := f.wait(gctx)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "waiting for tracked images")
	}

	var images xr.TrackedImages
	var indices []ecs.EntityId
	for i, r := range results {
		if r.err != nil {
			s.log.Warn().Err(r.err).Uint32("entity", uint32(ids[i])).Msg("tracked image left out of session")
			continue
		}
		images = append(images, xr.TrackedImage{Image: r.img, WidthMeters: r.width})
		indices = append(indices, ids[i])
	}

	if len(images) == 0 {
		s.log.Info().Msg("no tracked images, image tracking not requested")
		return nil
	}
	if err := negotiator.EnableFeature(xr.FeatureImageTracking, images); err != nil {
		return eris.Wrap(err, "failed to enable image tracking")
	}

	s.mu.Lock()
	s.indices = indices
	s.mu.Unlock()
	return nil
}

// Entities returns the entity tracked at each image index of the session.
func (s *System) Entities() []ecs.EntityId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.indices)
}

func (s *System) track(storage *ecs.Storage) {
	current := s.runtime.Frame()
	indices := s.Entities()
	if current == nil || len(indices) == 0 {
		return
	}

	located := make([]bool, len(indices))
	for _, r := range current.ImageTrackingResults() {
		if r.Index < 0 || r.Index >= len(indices) || r.Pose == nil || !r.State.Usable() {
			continue
		}
		id := indices[r.Index]
		if !storage.Alive(id) {
			continue
		}
		ecs.GetOrAdd[component.Position](storage, id).SetLive(r.Pose.Position)
		ecs.GetOrAdd[component.Orientation](storage, id).SetLive(r.Pose.Orientation)
		located[r.Index] = true
	}

	for i, id := range indices {
		if located[i] {
			continue
		}
		if pos, ok := ecs.Get[component.Position](storage, id); ok {
			pos.ClearLive()
		}
		if ori, ok := ecs.Get[component.Orientation](storage, id); ok {
			ori.ClearLive()
		}
	}
}
