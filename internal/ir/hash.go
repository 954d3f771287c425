package ir

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content hashes. The version suffix allows the
// hashed shape to change without colliding with older hashes.
const (
	DomainTopology = "lumo/topology/v1"
	DomainTrace    = "lumo/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TopologyHash identifies the wiring of a document: node ids and types,
// slot ids with their type and place, and the set of links.
// Names, positions, link ids and record order do not affect the hash, so a
// graph saved, reloaded and saved again hashes the same.
func TopologyHash(doc Document) (string, error) {
	nodes := slices.Clone(doc.Nodes)
	slices.SortFunc(nodes, func(a, b NodeRecord) int { return cmp.Compare(a.ID, b.ID) })

	nodeList := make(IRArray, 0, len(nodes))
	for _, n := range nodes {
		slots := slices.Clone(n.Slots)
		slices.SortFunc(slots, func(a, b SlotRecord) int { return cmp.Compare(a.ID, b.ID) })
		slotList := make(IRArray, 0, len(slots))
		for _, s := range slots {
			slotList = append(slotList, IRObject{
				"id":    IRInt(s.ID),
				"type":  IRString(s.Type),
				"place": IRString(s.Place.String()),
			})
		}
		nodeList = append(nodeList, IRObject{
			"id":     IRInt(n.ID),
			"type":   IRString(n.Type),
			"parent": IRInt(n.Parent),
			"slots":  slotList,
		})
	}

	links := make([]string, 0, len(doc.Links))
	for _, l := range doc.Links {
		links = append(links, l.From.String()+">"+l.To.String())
	}
	slices.Sort(links)
	linkList := make(IRArray, len(links))
	for i, l := range links {
		linkList[i] = IRString(l)
	}

	canonical, err := MarshalCanonical(IRObject{
		"nodes": nodeList,
		"links": linkList,
	})
	if err != nil {
		return "", fmt.Errorf("TopologyHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTopology, canonical), nil
}

// TraceHash hashes canonical trace bytes, used to compare replays.
func TraceHash(canonical []byte) string {
	return hashWithDomain(DomainTrace, canonical)
}

// MustTopologyHash is like TopologyHash but panics on error.
// Use only in tests.
func MustTopologyHash(doc Document) string {
	h, err := TopologyHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}

