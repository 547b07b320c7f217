package debugui

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/plus3/arworlds/component"
	"github.com/plus3/arworlds/content"
	"github.com/plus3/arworlds/ecs"
	"github.com/plus3/arworlds/loader"
)

type fieldKind int

const (
	kindOther fieldKind = iota
	kindInt
	kindUint
	kindFloat
	kindBool
	kindString
	kindVec3
	kindVec3Ptr
	kindQuat
	kindQuatPtr
	kindEntity
	kindEntities
	kindContent
	kindAnchorRef
	kindSlot
)

var (
	vec3Type      = reflect.TypeFor[mgl64.Vec3]()
	quatType      = reflect.TypeFor[mgl64.Quat]()
	entityType    = reflect.TypeFor[ecs.EntityId]()
	contentType   = reflect.TypeFor[content.ID]()
	anchorRefType = reflect.TypeFor[component.AnchorRef]()
	statusType    = reflect.TypeFor[loader.Status]()
)

// componentField is an exported field of a component struct, classified by
// how the inspector shows it.
type componentField struct {
	Name  string
	Index int
	Kind  fieldKind
}

func classify(t reflect.Type) fieldKind {
	switch t {
	case vec3Type:
		return kindVec3
	case quatType:
		return kindQuat
	case entityType:
		return kindEntity
	case contentType:
		return kindContent
	case anchorRefType:
		return kindAnchorRef
	}
	switch {
	case t.Kind() == reflect.Pointer && t.Elem() == vec3Type:
		return kindVec3Ptr
	case t.Kind() == reflect.Pointer && t.Elem() == quatType:
		return kindQuatPtr
	case t.Kind() == reflect.Slice && t.Elem() == entityType:
		return kindEntities
	case t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(statusType):
		return kindSlot
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return kindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return kindUint
	case reflect.Float32, reflect.Float64:
		return kindFloat
	case reflect.Bool:
		return kindBool
	case reflect.String:
		return kindString
	}
	return kindOther
}

type fieldCache struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]componentField
}

func (c *fieldCache) of(t reflect.Type) []componentField {
	c.mu.RLock()
	fields, ok := c.byType[t]
	c.mu.RUnlock()
	if ok {
		return fields
	}

	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fields = append(fields, componentField{Name: f.Name, Index: i, Kind: classify(f.Type)})
		}
	}

	c.mu.Lock()
	c.byType[t] = fields
	c.mu.Unlock()
	return fields
}

var componentFields = &fieldCache{byType: make(map[reflect.Type][]componentField)}

// FieldView is one component field formatted for display. Editable fields
// are the ones the inspector offers an input widget for.
type FieldView struct {
	Name     string
	Text     string
	Editable bool
}

// DescribeComponent formats the exported fields of a component, passed by
// value or pointer.
func DescribeComponent(c any) []FieldView {
	val := reflect.Indirect(reflect.ValueOf(c))
	if val.Kind() != reflect.Struct {
		return []FieldView{{Name: "value", Text: fmt.Sprintf("%v", c)}}
	}

	fields := componentFields.of(val.Type())
	views := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		fv := val.Field(f.Index)
		views = append(views, FieldView{
			Name:     f.Name,
			Text:     formatField(f.Kind, fv),
			Editable: editable(f.Kind, fv),
		})
	}
	return views
}

func editable(kind fieldKind, v reflect.Value) bool {
	switch kind {
	case kindInt, kindUint, kindFloat, kindBool, kindString, kindVec3:
		return true
	case kindVec3Ptr:
		return !v.IsNil()
	}
	return false
}

func formatField(kind fieldKind, v reflect.Value) string {
	switch kind {
	case kindInt:
		return fmt.Sprintf("%d", v.Int())
	case kindUint:
		return fmt.Sprintf("%d", v.Uint())
	case kindFloat:
		return fmt.Sprintf("%.3f", v.Float())
	case kindBool:
		return fmt.Sprintf("%t", v.Bool())
	case kindString:
		return fmt.Sprintf("%q", v.String())
	case kindVec3:
		return formatVec3(v.Interface().(mgl64.Vec3))
	case kindVec3Ptr:
		if v.IsNil() {
			return "unset"
		}
		return formatVec3(*v.Interface().(*mgl64.Vec3))
	case kindQuat:
		return formatQuat(v.Interface().(mgl64.Quat))
	case kindQuatPtr:
		if v.IsNil() {
			return "unset"
		}
		return formatQuat(*v.Interface().(*mgl64.Quat))
	case kindEntity:
		return formatEntity(v.Interface().(ecs.EntityId))
	case kindEntities:
		ids := v.Interface().([]ecs.EntityId)
		if len(ids) == 0 {
			return "none"
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = formatEntity(id)
		}
		return strings.Join(parts, ", ")
	case kindContent:
		id := v.Interface().(content.ID)
		if id.IsZero() {
			return "none"
		}
		return id.String()
	case kindAnchorRef:
		if v.IsNil() {
			return "none"
		}
		return formatAnchorRef(v.Interface().(component.AnchorRef))
	case kindSlot:
		if !v.CanAddr() {
			copied := reflect.New(v.Type()).Elem()
			copied.Set(v)
			v = copied
		}
		return formatSlot(v.Addr().Interface().(loader.Status))
	}
	if v.CanInterface() {
		return fmt.Sprintf("%+v", v.Interface())
	}
	return "?"
}

func formatVec3(v mgl64.Vec3) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X(), v.Y(), v.Z())
}

func formatQuat(q mgl64.Quat) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f | %.3f)", q.X(), q.Y(), q.Z(), q.W)
}

func formatEntity(id ecs.EntityId) string {
	if !id.Valid() {
		return "none"
	}
	return fmt.Sprintf("#%d", id)
}

func formatAnchorRef(ref component.AnchorRef) string {
	switch r := ref.(type) {
	case component.SingleEntity:
		return "entity " + formatEntity(r.ID)
	case component.SplitRef:
		return "position " + formatEntity(r.Position) + ", orientation " + formatEntity(r.Orientation)
	}
	sources := ref.Sources()
	parts := make([]string, 0, component.AxisCount)
	for axis := 0; axis < component.AxisCount; axis++ {
		parts = append(parts, formatEntity(sources.At(axis)))
	}
	return "axes " + strings.Join(parts, " ")
}

func formatSlot(s loader.Status) string {
	text := fmt.Sprintf("%s, %d attempts", s.State(), s.Attempts())
	if err := s.Err(); err != nil {
		text += ": " + err.Error()
	}
	return text
}
