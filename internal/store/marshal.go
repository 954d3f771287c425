package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/lumo/internal/ir"
)

// marshalArgs converts command arguments to canonical JSON TEXT.
func marshalArgs(args ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT back to an IRObject.
func unmarshalArgs(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal args: want object, got %T", v)
	}
	return obj, nil
}

// marshalDocument stores a scene document as JSON TEXT with HTML escaping
// disabled, so names round-trip byte for byte.
func marshalDocument(doc ir.Document) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDocument(data string) (ir.Document, error) {
	var doc ir.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return ir.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}
