package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultMaxBytes caps the size of a single fetched blob.
const DefaultMaxBytes = 64 << 20

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithTimeout bounds every request, including reading the body.
func WithTimeout(timeout time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// WithMaxBytes overrides DefaultMaxBytes.
func WithMaxBytes(n int64) GatewayOption {
	return func(g *Gateway) {
		g.maxBytes = n
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(log zerolog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.log = log
	}
}

// Gateway fetches blobs from an HTTP gateway of the content-addressed network
// at <host>/ipfs/<cid>.
type Gateway struct {
	host     string
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	log      zerolog.Logger
}

// NewGateway creates a gateway client for host, e.g. "https://w3s.link".
func NewGateway(host string, opts ...GatewayOption) (*Gateway, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid gateway host %q", host)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Errorf("gateway host %q must be an http or https url", host)
	}

	g := &Gateway{
		host:     strings.TrimRight(host, "/"),
		client:   http.DefaultClient,
		maxBytes: DefaultMaxBytes,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Host returns the gateway base url.
func (g *Gateway) Host() string {
	return g.host
}

// URL returns the address a blob is served at.
func (g *Gateway) URL(id ID) string {
	return fmt.Sprintf("%s/ipfs/%s", g.host, url.PathEscape(string(id)))
}

func (g *Gateway) FetchBytes(ctx context.Context, id ID) ([]byte, error) {
	if id.IsZero() {
		return nil, eris.New("empty content id")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL(id), nil)
	if err != nil {
		return nil, eris.Wrap(err, "failed to build gateway request")
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to fetch %s", id)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "cid %s", id)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, eris.Errorf("gateway returned %s for %s", resp.Status, id)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", id)
	}
	if int64(len(data)) > g.maxBytes {
		return nil, eris.Errorf("%s exceeds %d bytes", id, g.maxBytes)
	}

	g.log.Debug().
		Str("cid", string(id)).
		Int("bytes", len(data)).
		Dur("took", time.Since(start)).
		Msg("fetched content")
	return data, nil
}
