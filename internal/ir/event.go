package ir

import (
	"fmt"
	"slices"
)

// EventKind is the closed set of notification kinds routed along links.
type EventKind int

const (
	EventNone EventKind = iota
	EventTextureUpdateDone
	EventTextureGroupUpdateDone
	EventLightGroupUpdateDone
	EventModelUpdateDone
	EventParticlesUpdateDone
	EventShaderPassUpdateDone
	EventStorageBufferUpdateDone
	EventTexelBufferUpdateDone
	EventVariableUpdateDone
	EventAccelStructureUpdateDone

	// Structural events carry no payload.
	EventGraphIsLoaded
	EventNewFrameAvailable
	EventSomeTasksWasUpdated
)

var eventNames = map[EventKind]string{
	EventTextureUpdateDone:        "TextureUpdateDone",
	EventTextureGroupUpdateDone:   "TextureGroupUpdateDone",
	EventLightGroupUpdateDone:     "LightGroupUpdateDone",
	EventModelUpdateDone:          "ModelUpdateDone",
	EventParticlesUpdateDone:      "ParticlesUpdateDone",
	EventShaderPassUpdateDone:     "ShaderPassUpdateDone",
	EventStorageBufferUpdateDone:  "StorageBufferUpdateDone",
	EventTexelBufferUpdateDone:    "TexelBufferUpdateDone",
	EventVariableUpdateDone:       "VariableUpdateDone",
	EventAccelStructureUpdateDone: "AccelStructureUpdateDone",
	EventGraphIsLoaded:            "GraphIsLoaded",
	EventNewFrameAvailable:        "NewFrameAvailable",
	EventSomeTasksWasUpdated:      "SomeTasksWasUpdated",
}

// eventPayloads maps each payload event to the payload types it announces.
// TextureUpdateDone covers every single-texture dimensionality.
var eventPayloads = map[EventKind][]PayloadType{
	EventTextureUpdateDone:        {PayloadTexture2D, PayloadTexture3D, PayloadTextureCube},
	EventTextureGroupUpdateDone:   {PayloadTexture2DGroup},
	EventLightGroupUpdateDone:     {PayloadLightGroup},
	EventModelUpdateDone:          {PayloadModel, PayloadMesh},
	EventParticlesUpdateDone:      {PayloadParticles},
	EventShaderPassUpdateDone:     {PayloadShaderPass},
	EventStorageBufferUpdateDone:  {PayloadStorageBuffer},
	EventTexelBufferUpdateDone:    {PayloadTexelBuffer},
	EventVariableUpdateDone:       {PayloadVariable},
	EventAccelStructureUpdateDone: {PayloadAccelStructure},
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Valid reports whether k is a declared event kind.
func (k EventKind) Valid() bool {
	_, ok := eventNames[k]
	return ok
}

// IsStructural reports whether k is a topology/lifecycle event rather than
// a payload update.
func (k EventKind) IsStructural() bool {
	switch k {
	case EventGraphIsLoaded, EventNewFrameAvailable, EventSomeTasksWasUpdated:
		return true
	}
	return false
}

// Carries reports whether an event of kind k announces a new payload of type pt.
func (k EventKind) Carries(pt PayloadType) bool {
	return slices.Contains(eventPayloads[k], pt)
}

// Payloads returns the payload types announced by k (nil for structural events).
func (k EventKind) Payloads() []PayloadType {
	return slices.Clone(eventPayloads[k])
}

// UpdateEventFor returns the event a producer of pt emits after recomputing.
func UpdateEventFor(pt PayloadType) (EventKind, bool) {
	for k := EventTextureUpdateDone; k <= EventAccelStructureUpdateDone; k++ {
		if k.Carries(pt) {
			return k, true
		}
	}
	return EventNone, false
}

// ParseEventKind resolves an event name such as "TextureUpdateDone".
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range eventNames {
		if name == s {
			return k, nil
		}
	}
	return EventNone, fmt.Errorf("unknown event kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(b []byte) error {
	v, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
