package content

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when no blob exists for an id.
var ErrNotFound = eris.New("content not found")

// Fetcher retrieves the bytes of a content id.
type Fetcher interface {
	FetchBytes(ctx context.Context, id ID) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id ID) ([]byte, error)

func (f FetcherFunc) FetchBytes(ctx context.Context, id ID) ([]byte, error) {
	return f(ctx, id)
}

// Static serves blobs from memory. It backs headless runs and tests.
type Static map[ID][]byte

func (s Static) FetchBytes(ctx context.Context, id ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "fetch cancelled")
	}
	data, ok := s[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "cid %s", id)
	}
	return slices.Clone(data), nil
}
