package morph

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for mapping events.
var (
	SignalMapperCreated    = capitan.NewSignal("morph.mapper.created", "Mapping registered for a type pair")
	SignalAccessorsBuilt   = capitan.NewSignal("morph.accessors.built", "Accessor cache entry built")
	SignalAccessorsEvicted = capitan.NewSignal("morph.accessors.evicted", "Accessor cache entry reclaimed")
	SignalMapComplete      = capitan.NewSignal("morph.map.complete", "Map operation finished")
)

// Keys for typed event data.
var (
	KeySourceType = capitan.NewStringKey("source_type")
	KeyTargetType = capitan.NewStringKey("target_type")
	KeyTypeName   = capitan.NewStringKey("type_name")
	KeyFieldCount = capitan.NewIntKey("field_count")
	KeyWritten    = capitan.NewIntKey("written_count")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// emitMapperCreated emits an event when a mapping is registered.
func emitMapperCreated(ctx context.Context, src, dst string) {
	capitan.Emit(ctx, SignalMapperCreated,
		KeySourceType.Field(src),
		KeyTargetType.Field(dst),
	)
}

// emitAccessorsBuilt emits an event when a type's cache entry is built.
func emitAccessorsBuilt(ctx context.Context, typeName string, fields int) {
	capitan.Emit(ctx, SignalAccessorsBuilt,
		KeyTypeName.Field(typeName),
		KeyFieldCount.Field(fields),
	)
}

// emitAccessorsEvicted emits an event when a type's cache entry is reclaimed.
func emitAccessorsEvicted(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalAccessorsEvicted,
		KeyTypeName.Field(typeName),
	)
}

// emitMapComplete emits an event when a top-level map call finishes.
func emitMapComplete(ctx context.Context, src, dst string, duration time.Duration, written int, err error) {
	fields := []capitan.Field{
		KeySourceType.Field(src),
		KeyTargetType.Field(dst),
		KeyDuration.Field(duration),
		KeyWritten.Field(written),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalMapComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalMapComplete, fields...)
	}
}
