package ecs

import (
	"reflect"

	"github.com/kelindar/bitmap"
)

// iComponentStorage is an interface for a type-erased, sparse component storage
// holding at most one value per entity.
type iComponentStorage interface {
	Type() reflect.Type
	Set(id EntityId, item any) bool
	Get(id EntityId) any
	Has(id EntityId) bool
	Remove(id EntityId) bool
	Entities() []EntityId
	Members() bitmap.Bitmap
	Len() int
}
