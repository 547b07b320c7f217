// Package ebiten provides Dear ImGui backend integration for the Ebiten game engine.
package ebiten

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/AllenDang/cimgui-go/imgui"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
// It satisfies ebitensurface.Overlay, so the preview window draws the debug UI
// on top of the scene.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}

// NewImguiBackend creates the backend and its ImGui context. Call it before
// the Ebiten game loop starts.
func NewImguiBackend() ImguiBackend {
	backend := ebitenbackend.NewEbitenBackend()
	imgui.CurrentIO().SetIniFilename("")
	return ImguiBackend{EbitenBackend: backend}
}

// Layout discards the backend's return values so the method set matches the
// overlay interface.
func (b ImguiBackend) Layout(w, h int) {
	b.EbitenBackend.Layout(w, h)
}
