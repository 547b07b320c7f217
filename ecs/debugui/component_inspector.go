package debugui

import (
	"fmt"
	"reflect"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
)

var stateColors = map[loader.State]imgui.Vec4{
	loader.Idle:    imgui.NewVec4(0.6, 0.6, 0.6, 1.0),
	loader.Loading: imgui.NewVec4(1.0, 0.8, 0.0, 1.0),
	loader.Loaded:  imgui.NewVec4(0.0, 1.0, 0.0, 1.0),
	loader.Failed:  imgui.NewVec4(1.0, 0.3, 0.3, 1.0),
}

func NewComponentInspectorComponent() ComponentInspectorComponent {
	return ComponentInspectorComponent{}
}

// Render shows every component of the selected entity. Scalars, vectors and
// set Start/Live pointers are edited in place; other fields are read-only.
func (ci *ComponentInspectorComponent) Render(storage *ecs.Storage, selectedEntityId ecs.EntityId) {
	if !imgui.BeginV("Component Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	ci.selectedEntityId = selectedEntityId
	switch {
	case !ci.selectedEntityId.Valid():
		imgui.Text("No entity selected")
		return
	case !storage.Alive(ci.selectedEntityId):
		imgui.Text(fmt.Sprintf("Entity %d no longer exists", ci.selectedEntityId))
		return
	}

	imgui.Text(fmt.Sprintf("Entity %s", formatEntity(ci.selectedEntityId)))
	imgui.Separator()

	for _, compType := range storage.ComponentTypes() {
		c := storage.GetComponent(ci.selectedEntityId, compType)
		if c == nil {
			continue
		}
		if imgui.TreeNodeStr(compType.String()) {
			renderFields(compType.Name(), reflect.ValueOf(c).Elem())
			imgui.TreePop()
		}
	}
}

func renderFields(prefix string, val reflect.Value) {
	if val.Kind() != reflect.Struct {
		imgui.Text(fmt.Sprintf("%v", val.Interface()))
		return
	}
	fields := componentFields.of(val.Type())
	if len(fields) == 0 {
		imgui.TextDisabled("(tag)")
		return
	}
	for _, f := range fields {
		renderField(prefix+"."+f.Name, f, val.Field(f.Index))
	}
}

func renderField(id string, f componentField, v reflect.Value) {
	label := "##" + id
	if editable(f.Kind, v) {
		imgui.Text(f.Name + ":")
		imgui.SameLine()
		imgui.SetNextItemWidth(200)
	}

	switch {
	case f.Kind == kindFloat:
		x := float32(v.Float())
		if imgui.InputFloat(label, &x) {
			v.SetFloat(float64(x))
		}
	case f.Kind == kindInt:
		x := int32(v.Int())
		if imgui.InputInt(label, &x) {
			v.SetInt(int64(x))
		}
	case f.Kind == kindUint:
		x := int32(v.Uint())
		if imgui.InputInt(label, &x) && x >= 0 {
			v.SetUint(uint64(x))
		}
	case f.Kind == kindBool:
		b := v.Bool()
		if imgui.Checkbox(label, &b) {
			v.SetBool(b)
		}
	case f.Kind == kindString:
		s := v.String()
		if imgui.InputTextWithHint(label, "", &s, imgui.InputTextFlagsNone, nil) {
			v.SetString(s)
		}
	case f.Kind == kindVec3:
		editVec3(label, v.Addr().Interface().(*mgl64.Vec3))
	case f.Kind == kindVec3Ptr && !v.IsNil():
		editVec3(label, v.Interface().(*mgl64.Vec3))
	case f.Kind == kindSlot:
		status := v.Addr().Interface().(loader.Status)
		imgui.Text(f.Name + ":")
		imgui.SameLine()
		imgui.TextColored(stateColors[status.State()], formatField(f.Kind, v))
	default:
		imgui.Text(fmt.Sprintf("%s: %s", f.Name, formatField(f.Kind, v)))
	}
}

func editVec3(label string, target *mgl64.Vec3) {
	xyz := [3]float32{float32(target.X()), float32(target.Y()), float32(target.Z())}
	if imgui.InputFloat3(label, &xyz) {
		*target = mgl64.Vec3{float64(xyz[0]), float64(xyz[1]), float64(xyz[2])}
	}
}
