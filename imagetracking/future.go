package imagetracking

import (
	"context"
	"image"
	"sync"

	"github.com/rotisserie/eris"
)

type result struct {
	img   image.Image
	width float64
	err   error
}

// future publishes the first load attempt of one image to the feature
// initializer, which runs outside the frame loop.
type future struct {
	once  sync.Once
	done  chan struct{}
	width float64
	res   result
}

func newFuture(width float64) *future {
	return &future{done: make(chan struct{}), width: width}
}

func (f *future) resolve(img image.Image, err error) {
	f.once.Do(func() {
		f.res = result{img: img, width: f.width, err: err}
		close(f.done)
	})
}

func (f *future) wait(ctx context.Context) (result, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return result{}, eris.Wrap(ctx.Err(), "tracked image load cancelled")
	}
}
