package debugui

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/arworlds/ecs"
)

type QueryDebuggerCache struct {
	componentTypes []reflect.Type
	lastTypeCount  int
}

func NewQueryDebuggerComponent() QueryDebuggerComponent {
	return QueryDebuggerComponent{
		selectedComponentTypes: make(map[string]bool),
		cache: &QueryDebuggerCache{
			lastTypeCount: -1,
		},
	}
}

// MatchEntities returns the entities holding every type, in the insertion
// order of the first type's store.
func MatchEntities(storage *ecs.Storage, types []reflect.Type) []ecs.EntityId {
	if len(types) == 0 {
		return nil
	}
	var out []ecs.EntityId
	for _, id := range storage.EntitiesWith(types[0]) {
		if hasAll(storage, id, types[1:]) {
			out = append(out, id)
		}
	}
	return out
}

// Render draws the window and returns the selected types for the entity
// browser to filter on.
func (qd *QueryDebuggerComponent) Render(storage *ecs.Storage) []reflect.Type {
	selectedTypes := qd.SelectedTypes(storage)

	if !imgui.BeginV("Query Debugger", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return selectedTypes
	}

	imgui.Text("Select Component Types:")
	imgui.Separator()

	if imgui.Button("Clear All") {
		qd.selectedComponentTypes = make(map[string]bool)
	}

	for _, compType := range qd.cache.componentTypes {
		name := compType.String()
		selected := qd.selectedComponentTypes[name]
		if imgui.Checkbox(name, &selected) {
			if selected {
				qd.selectedComponentTypes[name] = true
			} else {
				delete(qd.selectedComponentTypes, name)
			}
		}
	}

	imgui.Separator()

	if len(selectedTypes) == 0 {
		imgui.Text("No component types selected")
		imgui.End()
		return selectedTypes
	}

	matching := MatchEntities(storage, selectedTypes)
	imgui.Text(fmt.Sprintf("Matching Entities: %d", len(matching)))

	if imgui.TreeNodeStr("Entity Details") {
		for _, id := range matching {
			imgui.BulletText(fmt.Sprintf("%d", id))
		}
		imgui.TreePop()
	}

	imgui.End()
	return selectedTypes
}

// SelectedTypes resolves the checked type names against the storage.
func (qd *QueryDebuggerComponent) SelectedTypes(storage *ecs.Storage) []reflect.Type {
	qd.rebuildCacheIfNeeded(storage)

	var selected []reflect.Type
	for _, t := range qd.cache.componentTypes {
		if qd.selectedComponentTypes[t.String()] {
			selected = append(selected, t)
		}
	}
	return selected
}

// Select checks a type by name.
func (qd *QueryDebuggerComponent) Select(name string) {
	qd.selectedComponentTypes[name] = true
}

func (qd *QueryDebuggerComponent) rebuildCacheIfNeeded(storage *ecs.Storage) {
	types := storage.ComponentTypes()
	if qd.cache.lastTypeCount == len(types) {
		return
	}
	qd.cache.lastTypeCount = len(types)

	qd.cache.componentTypes = append([]reflect.Type(nil), types...)
	sort.Slice(qd.cache.componentTypes, func(i, j int) bool {
		return qd.cache.componentTypes[i].String() < qd.cache.componentTypes[j].String()
	})
}
