package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Document is the format-neutral persisted form of a graph.
// Nodes appear parents-first; links and outputs reference nodes and slots by id.
type Document struct {
	Nodes   []NodeRecord   `json:"nodes"`
	Links   []LinkRecord   `json:"links"`
	Outputs []OutputRecord `json:"outputs,omitempty"`
}

// NodeRecord is one persisted node.
type NodeRecord struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Pos    Point        `json:"pos"`
	Parent int64        `json:"parent,omitempty"` // 0 for root nodes
	Slots  []SlotRecord `json:"slots"`
}

// SlotRecord is one persisted slot. Index is the slot's position among
// the node's slots of the same place.
type SlotRecord struct {
	ID         int64       `json:"id"`
	Index      int         `json:"index"`
	Name       string      `json:"name"`
	Type       PayloadType `json:"type"`
	Place      Place       `json:"place"`
	Binding    uint32      `json:"binding"`
	AcceptMany bool        `json:"accept_many,omitempty"`
}

// SlotAddr addresses a slot as node-id:slot-id.
type SlotAddr struct {
	Node int64 `json:"node"`
	Slot int64 `json:"slot"`
}

func (a SlotAddr) String() string {
	return fmt.Sprintf("%d:%d", a.Node, a.Slot)
}

// ParseSlotAddr parses "node:slot".
func ParseSlotAddr(s string) (SlotAddr, error) {
	nodeStr, slotStr, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return SlotAddr{}, fmt.Errorf("slot address %q: want node:slot", s)
	}
	node, err := strconv.ParseInt(nodeStr, 10, 64)
	if err != nil {
		return SlotAddr{}, fmt.Errorf("slot address %q: node id: %w", s, err)
	}
	slot, err := strconv.ParseInt(slotStr, 10, 64)
	if err != nil {
		return SlotAddr{}, fmt.Errorf("slot address %q: slot id: %w", s, err)
	}
	return SlotAddr{Node: node, Slot: slot}, nil
}

// LinkRecord is one persisted link, always recorded output-to-input.
type LinkRecord struct {
	ID   int64    `json:"id"`
	From SlotAddr `json:"from"`
	To   SlotAddr `json:"to"`
}

// OutputRecord persists a graph output selection.
type OutputRecord struct {
	Button OutputButton `json:"button"`
	Slot   SlotAddr     `json:"slot"`
}

// NodeType is a compiled node-type declaration from a catalog.
type NodeType struct {
	Name             string     `json:"name"`
	Category         string     `json:"category,omitempty"`
	Inputs           []SlotDecl `json:"inputs"`
	Outputs          []SlotDecl `json:"outputs"`
	Passthrough      bool       `json:"passthrough,omitempty"`
	DynamicSlots     bool       `json:"dynamic_slots,omitempty"`
	DeletionDisabled bool       `json:"deletion_disabled,omitempty"`
}

// SlotDecl declares one slot of a node type.
type SlotDecl struct {
	Name       string      `json:"name"`
	Type       PayloadType `json:"type"`
	Binding    uint32      `json:"binding"`
	AcceptMany bool        `json:"accept_many,omitempty"`
}

// Catalog is a compiled set of node types plus optional color overrides.
type Catalog struct {
	Types  []NodeType            `json:"types"`
	Colors map[PayloadType]Color `json:"colors,omitempty"`
}

// Lookup finds a node type by name.
func (c *Catalog) Lookup(name string) (NodeType, bool) {
	for _, t := range c.Types {
		if t.Name == name {
			return t, true
		}
	}
	return NodeType{}, false
}
