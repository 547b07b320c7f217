package xr

import (
	"slices"
	"sync"

	"github.com/rotisserie/eris"
)

// Negotiator is the default FeatureNegotiator. Enabling a feature twice
// replaces its options, except for image tracking where image lists are
// appended so several systems can contribute targets.
type Negotiator struct {
	mu        sync.Mutex
	supported []Feature
	enabled   []EnabledFeature
}

// NewNegotiator creates a negotiator accepting the given features. An empty
// list accepts any feature.
func NewNegotiator(supported ...Feature) *Negotiator {
	return &Negotiator{supported: supported}
}

func (n *Negotiator) EnableFeature(name Feature, options any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.supported) > 0 && !slices.Contains(n.supported, name) {
		return eris.Wrapf(ErrUnsupported, "feature %q", name)
	}

	for i, f := range n.enabled {
		if f.Name != name {
			continue
		}
		if prev, ok := f.Options.(TrackedImages); ok {
			if next, ok := options.(TrackedImages); ok {
				n.enabled[i].Options = append(slices.Clone(prev), next...)
				return nil
			}
		}
		n.enabled[i].Options = options
		return nil
	}

	n.enabled = append(n.enabled, EnabledFeature{Name: name, Options: options})
	return nil
}

// Restrict replaces the accepted feature list.
func (n *Negotiator) Restrict(supported ...Feature) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.supported = supported
}

// Enabled returns the enabled features in the order they were first enabled.
func (n *Negotiator) Enabled() []EnabledFeature {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.enabled)
}

// IsEnabled reports whether a feature was enabled.
func (n *Negotiator) IsEnabled(name Feature) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.ContainsFunc(n.enabled, func(f EnabledFeature) bool { return f.Name == name })
}
