package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/ecs/debugui"
	"github.com/plus3/arworlds/imagecapture"
	"github.com/plus3/arworlds/modelscaling"
)

// keyboardInput maps keys of the preview window onto the scale and capture
// controls: +/- scale every model, C captures an image anchor. It runs inside
// ebiten's Update, so key state is current.
type keyboardInput struct {
	Scale   ecs.Singleton[modelscaling.ScaleInput]
	Capture ecs.Singleton[imagecapture.CaptureRequest]
	Imgui   ecs.Singleton[debugui.ImguiInputState]
}

func (k *keyboardInput) Execute(frame *ecs.UpdateFrame) {
	if k.Imgui.Get().WantCaptureKeyboard {
		k.Scale.Get().Held = modelscaling.None
		return
	}

	held := modelscaling.None
	switch {
	case ebiten.IsKeyPressed(ebiten.KeyEqual), ebiten.IsKeyPressed(ebiten.KeyNumpadAdd):
		held = modelscaling.Increase
	case ebiten.IsKeyPressed(ebiten.KeyMinus), ebiten.IsKeyPressed(ebiten.KeyNumpadSubtract):
		held = modelscaling.Decrease
	}
	k.Scale.Get().Held = held

	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		k.Capture.Get().Requested = true
	}
}
