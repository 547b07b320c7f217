// Package component defines the authoring components of an AR world and the
// small helpers systems use to read them.
package component

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Position is an entity's location in the session's reference space. Start is
// the authored default; Live is set by tracking while it holds and cleared as
// soon as it is lost.
type Position struct {
	Start *mgl64.Vec3
	Live  *mgl64.Vec3
}

// NewPosition returns a Position with only a start value.
func NewPosition(x, y, z float64) Position {
	v := mgl64.Vec3{x, y, z}
	return Position{Start: &v}
}

// Current returns the live value, falling back to the start value.
func (p *Position) Current() (mgl64.Vec3, bool) {
	switch {
	case p == nil:
		return mgl64.Vec3{}, false
	case p.Live != nil:
		return *p.Live, true
	case p.Start != nil:
		return *p.Start, true
	default:
		return mgl64.Vec3{}, false
	}
}

// Resolve returns Current or the origin.
func (p *Position) Resolve() mgl64.Vec3 {
	v, _ := p.Current()
	return v
}

// SetLive stores a tracked value.
func (p *Position) SetLive(v mgl64.Vec3) {
	p.Live = &v
}

// ClearLive drops the tracked value.
func (p *Position) ClearLive() {
	p.Live = nil
}

// Orientation is an entity's rotation as a unit quaternion, with the same
// start and live split as Position.
type Orientation struct {
	Start *mgl64.Quat
	Live  *mgl64.Quat
}

// NewOrientation returns an Orientation with only a start value.
func NewOrientation(q mgl64.Quat) Orientation {
	return Orientation{Start: &q}
}

// Current returns the live value, falling back to the start value.
func (o *Orientation) Current() (mgl64.Quat, bool) {
	switch {
	case o == nil:
		return mgl64.QuatIdent(), false
	case o.Live != nil:
		return *o.Live, true
	case o.Start != nil:
		return *o.Start, true
	default:
		return mgl64.QuatIdent(), false
	}
}

// Resolve returns Current or the identity rotation.
func (o *Orientation) Resolve() mgl64.Quat {
	q, _ := o.Current()
	return q
}

func (o *Orientation) SetLive(q mgl64.Quat) {
	o.Live = &q
}

func (o *Orientation) ClearLive() {
	o.Live = nil
}

// Scale is an entity's per-axis scale, defaulting to 1.
type Scale struct {
	Start *mgl64.Vec3
	Live  *mgl64.Vec3
}

// NewScale returns a uniform Scale with only a start value.
func NewScale(s float64) Scale {
	v := mgl64.Vec3{s, s, s}
	return Scale{Start: &v}
}

// Current returns the live value, falling back to the start value.
func (s *Scale) Current() (mgl64.Vec3, bool) {
	switch {
	case s == nil:
		return mgl64.Vec3{1, 1, 1}, false
	case s.Live != nil:
		return *s.Live, true
	case s.Start != nil:
		return *s.Start, true
	default:
		return mgl64.Vec3{1, 1, 1}, false
	}
}

// Resolve returns Current or the unit scale.
func (s *Scale) Resolve() mgl64.Vec3 {
	v, _ := s.Current()
	return v
}

func (s *Scale) SetLive(v mgl64.Vec3) {
	s.Live = &v
}

// Visibility is derived each frame by the anchor transform system and read by
// renderers. Entities without it are visible.
type Visibility struct {
	Visible bool
}
