package debugui

import (
	"reflect"

	"github.com/plus3/arworlds/ecs"
)

type EntityBrowserComponent struct {
	cache              *EntityBrowserCache
	selectedEntityId   ecs.EntityId
	filterText         string
	requiredTypes      []reflect.Type
	maxEntitiesPerPage int
	currentPage        int
}

type ComponentInspectorComponent struct {
	selectedEntityId ecs.EntityId
}

type PerformanceStatsComponent struct {
	historyFrames int
	frameHistory  []float32
	frameIndex    int
}

type QueryDebuggerComponent struct {
	selectedComponentTypes map[string]bool
	cache                  *QueryDebuggerCache
}

type AnchorInspectorComponent struct {
	showHidden bool
}

type LoadInspectorComponent struct {
	failedOnly bool
}
