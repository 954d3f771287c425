package graph

import (
	"fmt"
	"reflect"

	"github.com/roach88/lumo/internal/ir"
)

// Capability is one (payload type, place) pair a node declares, with the
// accessor the router calls. Output capabilities carry a getter, input
// capabilities a setter. Build them with Produces and Consumes.
type Capability struct {
	Type  ir.PayloadType
	Place ir.Place

	payload reflect.Type
	get     func(binding uint32) any
	set     func(binding uint32, v any) bool
}

// Produces declares that a node can hand out payloads of type pt.
// get is called with the emitting slot's binding; returning nil means the
// node has nothing to offer at that binding.
func Produces[T any](pt ir.PayloadType, get func(binding uint32) *T) Capability {
	return Capability{
		Type:    pt,
		Place:   ir.PlaceOutput,
		payload: reflect.TypeOf((*T)(nil)).Elem(),
		get: func(binding uint32) any {
			if v := get(binding); v != nil {
				return v
			}
			return nil
		},
	}
}

// Consumes declares that a node accepts payloads of type pt.
// set is called with the receiving slot's binding and must accept nil,
// which means the link was removed or the producer has nothing.
func Consumes[T any](pt ir.PayloadType, set func(binding uint32, v *T)) Capability {
	return Capability{
		Type:    pt,
		Place:   ir.PlaceInput,
		payload: reflect.TypeOf((*T)(nil)).Elem(),
		set: func(binding uint32, v any) bool {
			if v == nil {
				set(binding, nil)
				return true
			}
			typed, ok := v.(*T)
			if !ok {
				return false
			}
			set(binding, typed)
			return true
		},
	}
}

// PayloadType returns the Go type the capability moves, for diagnostics.
func (c Capability) PayloadType() reflect.Type { return c.payload }

func (c Capability) valid() error {
	switch c.Place {
	case ir.PlaceOutput:
		if c.get == nil {
			return fmt.Errorf("output capability %s has no getter", c.Type)
		}
	case ir.PlaceInput:
		if c.set == nil {
			return fmt.Errorf("input capability %s has no setter", c.Type)
		}
	default:
		return fmt.Errorf("capability %s has no place", c.Type)
	}
	return nil
}

type capKey struct {
	typ   ir.PayloadType
	place ir.Place
}
