package scene

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/lumo/internal/ir"
)

type xmlGraph struct {
	XMLName xml.Name    `xml:"graph"`
	Version string      `xml:"version,attr,omitempty"`
	Nodes   []xmlNode   `xml:"nodes>node"`
	Links   []xmlLink   `xml:"links>link"`
	Outputs []xmlOutput `xml:"outputs>output"`
}

type xmlNode struct {
	ID     int64     `xml:"id,attr"`
	Name   string    `xml:"name,attr"`
	Type   string    `xml:"type,attr"`
	Pos    string    `xml:"pos,attr,omitempty"`
	Parent int64     `xml:"parent,attr,omitempty"`
	Slots  []xmlSlot `xml:"slot"`
}

type xmlSlot struct {
	Index      int    `xml:"index,attr"`
	Name       string `xml:"name,attr"`
	Type       string `xml:"type,attr"`
	Place      string `xml:"place,attr"`
	ID         int64  `xml:"id,attr"`
	Binding    uint32 `xml:"binding,attr,omitempty"`
	AcceptMany bool   `xml:"accept_many,attr,omitempty"`
}

type xmlLink struct {
	ID  int64  `xml:"id,attr,omitempty"`
	In  string `xml:"in,attr"`
	Out string `xml:"out,attr"`
}

type xmlOutput struct {
	Type string `xml:"type,attr"`
	IDs  string `xml:"ids,attr"`
}

// FormatError reports a malformed scene file.
type FormatError struct {
	Element string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("scene: %s: %s", e.Element, e.Message)
}

// Encode renders a document as an indented XML scene.
func Encode(doc ir.Document) ([]byte, error) {
	g := xmlGraph{Version: ir.DocumentVersion}
	for _, n := range doc.Nodes {
		xn := xmlNode{
			ID:     n.ID,
			Name:   n.Name,
			Type:   n.Type,
			Pos:    formatPoint(n.Pos),
			Parent: n.Parent,
		}
		for _, s := range n.Slots {
			xn.Slots = append(xn.Slots, xmlSlot{
				Index:      s.Index,
				Name:       s.Name,
				Type:       string(s.Type),
				Place:      s.Place.String(),
				ID:         s.ID,
				Binding:    s.Binding,
				AcceptMany: s.AcceptMany,
			})
		}
		g.Nodes = append(g.Nodes, xn)
	}
	for _, l := range doc.Links {
		g.Links = append(g.Links, xmlLink{ID: l.ID, In: l.To.String(), Out: l.From.String()})
	}
	for _, o := range doc.Outputs {
		g.Outputs = append(g.Outputs, xmlOutput{Type: o.Button.String(), IDs: o.Slot.String()})
	}

	out, err := xml.MarshalIndent(g, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("scene: encode: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// Decode parses an XML scene. Payload types are kept verbatim so Load can
// report the ones it does not recognize; places, addresses and positions
// must parse.
func Decode(data []byte) (ir.Document, error) {
	var g xmlGraph
	if err := xml.Unmarshal(data, &g); err != nil {
		return ir.Document{}, fmt.Errorf("scene: decode: %w", err)
	}
	if g.Version != "" && g.Version != ir.DocumentVersion {
		return ir.Document{}, &FormatError{Element: "graph", Message: fmt.Sprintf("unsupported version %q", g.Version)}
	}

	doc := ir.Document{Nodes: []ir.NodeRecord{}, Links: []ir.LinkRecord{}}
	for i, xn := range g.Nodes {
		pos, err := parsePoint(xn.Pos)
		if err != nil {
			return ir.Document{}, &FormatError{Element: fmt.Sprintf("node[%d]", i), Message: err.Error()}
		}
		rec := ir.NodeRecord{
			ID:     xn.ID,
			Name:   xn.Name,
			Type:   xn.Type,
			Pos:    pos,
			Parent: xn.Parent,
			Slots:  make([]ir.SlotRecord, 0, len(xn.Slots)),
		}
		for j, xs := range xn.Slots {
			place, err := ir.ParsePlace(xs.Place)
			if err != nil {
				return ir.Document{}, &FormatError{Element: fmt.Sprintf("node[%d].slot[%d]", i, j), Message: err.Error()}
			}
			rec.Slots = append(rec.Slots, ir.SlotRecord{
				ID:         xs.ID,
				Index:      xs.Index,
				Name:       xs.Name,
				Type:       ir.PayloadType(xs.Type),
				Place:      place,
				Binding:    xs.Binding,
				AcceptMany: xs.AcceptMany,
			})
		}
		doc.Nodes = append(doc.Nodes, rec)
	}

	for i, xl := range g.Links {
		in, err := ir.ParseSlotAddr(xl.In)
		if err != nil {
			return ir.Document{}, &FormatError{Element: fmt.Sprintf("link[%d]", i), Message: err.Error()}
		}
		out, err := ir.ParseSlotAddr(xl.Out)
		if err != nil {
			return ir.Document{}, &FormatError{Element: fmt.Sprintf("link[%d]", i), Message: err.Error()}
		}
		doc.Links = append(doc.Links, ir.LinkRecord{ID: xl.ID, From: out, To: in})
	}

	for i, xo := range g.Outputs {
		button, err := ir.ParseOutputButton(xo.Type)
		if err != nil {
			return ir.Document{}, &FormatError{Element: fmt.Sprintf("output[%d]", i), Message: err.Error()}
		}
		addr, err := ir.ParseSlotAddr(xo.IDs)
		if err != nil {
			return ir.Document{}, &FormatError{Element: fmt.Sprintf("output[%d]", i), Message: err.Error()}
		}
		doc.Outputs = append(doc.Outputs, ir.OutputRecord{Button: button, Slot: addr})
	}

	return doc, nil
}

// ReadFile decodes the scene at path.
func ReadFile(path string) (ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Document{}, fmt.Errorf("scene: %w", err)
	}
	return Decode(data)
}

// WriteFile encodes doc to path.
func WriteFile(path string, doc ir.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	return nil
}

func formatPoint(p ir.Point) string {
	return strconv.FormatInt(p.X, 10) + ";" + strconv.FormatInt(p.Y, 10)
}

// parsePoint reads "x;y". Older files store float coordinates; they are
// rounded to the nearest unit.
func parsePoint(s string) (ir.Point, error) {
	if strings.TrimSpace(s) == "" {
		return ir.Point{}, nil
	}
	xs, ys, ok := strings.Cut(s, ";")
	if !ok {
		return ir.Point{}, fmt.Errorf("pos %q: want x;y", s)
	}
	x, err := parseCoord(xs)
	if err != nil {
		return ir.Point{}, fmt.Errorf("pos %q: %w", s, err)
	}
	y, err := parseCoord(ys)
	if err != nil {
		return ir.Point{}, fmt.Errorf("pos %q: %w", s, err)
	}
	return ir.Point{X: x, Y: y}, nil
}

func parseCoord(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}
