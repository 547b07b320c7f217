package debugui

import (
	"fmt"
	"reflect"
	"time"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
)

// LoadRow is one async load slot found on an entity.
type LoadRow struct {
	ID       ecs.EntityId
	Slot     string // Component.Field
	State    loader.State
	Attempts int
	Err      error
	RetryAt  time.Time
}

func NewLoadInspectorComponent() LoadInspectorComponent {
	return LoadInspectorComponent{}
}

// CollectLoads finds every loader slot held in a component field.
func CollectLoads(storage *ecs.Storage) []LoadRow {
	var rows []LoadRow
	for _, compType := range storage.ComponentTypes() {
		if compType.Kind() != reflect.Struct {
			continue
		}
		var slotFields []componentField
		for _, f := range componentFields.of(compType) {
			if f.Kind == kindSlot {
				slotFields = append(slotFields, f)
			}
		}
		if len(slotFields) == 0 {
			continue
		}

		for _, id := range storage.EntitiesWith(compType) {
			val := reflect.ValueOf(storage.GetComponent(id, compType)).Elem()
			for _, f := range slotFields {
				status := val.Field(f.Index).Addr().Interface().(loader.Status)
				rows = append(rows, LoadRow{
					ID:       id,
					Slot:     compType.Name() + "." + f.Name,
					State:    status.State(),
					Attempts: status.Attempts(),
					Err:      status.Err(),
					RetryAt:  status.RetryAt(),
				})
			}
		}
	}
	return rows
}

func (li *LoadInspectorComponent) Render(storage *ecs.Storage) {
	if !imgui.BeginV("Loads", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	imgui.Checkbox("Failed only", &li.failedOnly)

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsScrollY
	if imgui.BeginTableV("LoadTable", 5, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Entity")
		imgui.TableSetupColumn("Slot")
		imgui.TableSetupColumn("State")
		imgui.TableSetupColumn("Attempts")
		imgui.TableSetupColumn("Error")
		imgui.TableHeadersRow()

		for _, row := range CollectLoads(storage) {
			if li.failedOnly && row.State != loader.Failed {
				continue
			}
			imgui.TableNextRow()
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.ID))
			imgui.TableNextColumn()
			imgui.Text(row.Slot)
			imgui.TableNextColumn()
			imgui.Text(row.State.String())
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.Attempts))
			imgui.TableNextColumn()
			switch {
			case row.Err == nil:
				imgui.Text("")
			case row.RetryAt.IsZero():
				imgui.Text(row.Err.Error())
			default:
				imgui.Text(fmt.Sprintf("%s (retry in %s)", row.Err, time.Until(row.RetryAt).Round(time.Second)))
			}
		}

		imgui.EndTable()
	}

	imgui.End()
}
