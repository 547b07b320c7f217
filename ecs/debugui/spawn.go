package debugui

import "github.com/plus3/arworlds/ecs"

// SpawnDebugUI creates one entity holding the state of every inspector
// window and an ImguiItem drawing them. Register an ImguiSystem to render it.
func SpawnDebugUI(world *ecs.World) ecs.EntityId {
	storage := world.Storage()
	RegisterDebugUIComponents(storage.Registry())

	id := storage.Spawn(
		NewEntityBrowserComponent(100),
		NewComponentInspectorComponent(),
		NewPerformanceStatsComponent(120),
		NewQueryDebuggerComponent(),
		NewAnchorInspectorComponent(),
		NewLoadInspectorComponent(),
		*NewFrameTimer(),
	)
	scheduler := world.Scheduler()
	storage.SetComponent(id, ImguiItem{Render: func() {
		renderWindows(storage, scheduler, id)
	}})
	return id
}

func renderWindows(storage *ecs.Storage, scheduler *ecs.Scheduler, id ecs.EntityId) {
	browser, ok := ecs.Get[EntityBrowserComponent](storage, id)
	if !ok {
		return
	}
	timer := ecs.GetOrAdd[FrameTimer](storage, id)

	if query, ok := ecs.Get[QueryDebuggerComponent](storage, id); ok {
		browser.SetRequiredTypes(query.Render(storage))
	}
	browser.Render(storage)
	if inspector, ok := ecs.Get[ComponentInspectorComponent](storage, id); ok {
		inspector.Render(storage, browser.GetSelectedEntity())
	}
	if anchors, ok := ecs.Get[AnchorInspectorComponent](storage, id); ok {
		anchors.Render(storage)
	}
	if loads, ok := ecs.Get[LoadInspectorComponent](storage, id); ok {
		loads.Render(storage)
	}
	if perf, ok := ecs.Get[PerformanceStatsComponent](storage, id); ok {
		perf.Render(storage, scheduler, timer.GetDeltaTime())
	}
}

func RegisterDebugUIComponents(registry *ecs.ComponentRegistry) {
	ecs.RegisterComponent[ImguiItem](registry)
	ecs.RegisterComponent[ImguiInputState](registry)
	ecs.RegisterComponent[EntityBrowserComponent](registry)
	ecs.RegisterComponent[ComponentInspectorComponent](registry)
	ecs.RegisterComponent[PerformanceStatsComponent](registry)
	ecs.RegisterComponent[QueryDebuggerComponent](registry)
	ecs.RegisterComponent[AnchorInspectorComponent](registry)
	ecs.RegisterComponent[LoadInspectorComponent](registry)
	ecs.RegisterComponent[FrameTimer](registry)
}
