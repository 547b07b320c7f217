package ebiten_test

import (
	"context"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/ecs/debugui"
	debugui_ebiten "github.com/plus3/arworlds/ecs/debugui/ebiten"
	"github.com/plus3/arworlds/graphics/ebitensurface"
)

var _ ebitensurface.Overlay = debugui_ebiten.ImguiBackend{}

func Example() {
	// Create the ImGui backend before the window opens
	imguiBackend := debugui_ebiten.NewImguiBackend()

	world := ecs.NewWorld()
	defer world.Close()

	// Inspector windows, plus any custom ImGui widget
	debugui.SpawnDebugUI(world)
	world.Storage().Spawn(debugui.ImguiItem{
		Render: func() {
			imgui.Begin("Debug Window")
			imgui.Text("Hello from ECS!")
			imgui.End()
		},
	})
	world.AddSystem(&debugui.ImguiSystem{})

	// The surface brackets every tick with the backend's BeginFrame/EndFrame
	// and draws it over the preview
	surface := ebitensurface.New("arworld debug", 1280, 720, ebitensurface.WithOverlay(imguiBackend))
	if err := surface.RunLoop(context.Background(), world.Update); err != nil {
		panic(err)
	}
}
