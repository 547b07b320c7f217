package main

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/xr"
	"github.com/plus3/arworlds/xr/simxr"
)

// simulate drives a simulated session so a headless run has something to
// track: the viewer stands at eye height, the first tracked image sways in
// front of it and the hit test ray meets the floor 1.5m ahead.
func simulate(ctx context.Context, device *simxr.Device, interval time.Duration) {
	session := device.Session()
	if session == nil {
		return
	}

	session.SetViewer(
		xr.Pose{Position: mgl64.Vec3{0, 1.6, 0}, Orientation: mgl64.QuatIdent()},
		xr.View{VerticalFOV: math.Pi / 3, AspectRatio: 9.0 / 16.0},
	)
	floor := xr.Pose{Position: mgl64.Vec3{0, 0, -1.5}, Orientation: mgl64.QuatIdent()}
	session.SetHitTest(&floor)
	session.SetCameraImage(cameraImage(90, 160))

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if session.Ended() {
				return
			}
			t := now.Sub(start).Seconds()
			pose := xr.Pose{
				Position:    mgl64.Vec3{0.2 * math.Sin(t), 1.4, -1},
				Orientation: mgl64.QuatRotate(0.3*math.Sin(t/2), mgl64.Vec3{0, 1, 0}),
			}
			session.SetImageResult(0, &pose, xr.Tracked)
		}
	}
}

func cameraImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(255 * x / w), G: uint8(255 * y / h), B: 0x80, A: 0xff})
		}
	}
	return img
}
