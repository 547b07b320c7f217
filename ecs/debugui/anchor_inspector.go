package debugui

import (
	"fmt"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/anchor"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/ecs"
)

// AnchorRow is one anchored entity as the transform system sees it.
type AnchorRow struct {
	ID       ecs.EntityId
	Sources  component.AxisSources
	Frame    anchor.Resolved
	Position mgl64.Vec3
	Visible  bool
	// Tracked is set when the entity is an IsAnchor with a created device anchor.
	Tracked bool
}

func NewAnchorInspectorComponent() AnchorInspectorComponent {
	return AnchorInspectorComponent{showHidden: true}
}

// CollectAnchors resolves every anchored entity without modifying storage.
func CollectAnchors(storage *ecs.Storage) []AnchorRow {
	var rows []AnchorRow
	for _, id := range ecs.EntitiesWith[component.Anchor](storage) {
		a := ecs.ReadComponent[component.Anchor](storage, id)
		row := AnchorRow{
			ID:       id,
			Sources:  a.Sources(),
			Visible:  true,
			Position: ecs.ReadComponent[component.Position](storage, id).Resolve(),
		}
		row.Frame = anchor.Resolve(storage, row.Sources)
		if v := ecs.ReadComponent[component.Visibility](storage, id); v != nil {
			row.Visible = v.Visible
		}
		if state := ecs.ReadComponent[anchor.CreateState](storage, id); state != nil {
			_, row.Tracked = state.Anchor.Value()
		}
		rows = append(rows, row)
	}
	return rows
}

func (ai *AnchorInspectorComponent) Render(storage *ecs.Storage) {
	if !imgui.BeginV("Anchor Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	imgui.Checkbox("Show hidden", &ai.showHidden)

	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsScrollY
	if imgui.BeginTableV("AnchorTable", 5, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Entity")
		imgui.TableSetupColumn("Sources (px py pz | ox oy oz ow)")
		imgui.TableSetupColumn("Frame")
		imgui.TableSetupColumn("Position")
		imgui.TableSetupColumn("State")
		imgui.TableHeadersRow()

		for _, row := range CollectAnchors(storage) {
			if !row.Visible && !ai.showHidden {
				continue
			}
			imgui.TableNextRow()
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", row.ID))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%v | %v", row.Sources.Position, row.Sources.Orientation))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%.2f found=%t complete=%t", row.Frame.Position, row.Frame.Found, row.Frame.Complete))
			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%.2f", row.Position))
			imgui.TableNextColumn()
			state := "hidden"
			if row.Visible {
				state = "visible"
			}
			imgui.Text(state)
		}

		imgui.EndTable()
	}

	imgui.End()
}
