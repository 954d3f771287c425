package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeExpiredRef: a slot or node reference no longer resolves.
	ErrCodeExpiredRef ErrorCode = "EXPIRED_REF"

	// ErrCodeSamePlace: both endpoints are inputs, or both are outputs.
	ErrCodeSamePlace ErrorCode = "SAME_PLACE"

	// ErrCodeTypeMismatch: the endpoints carry different payload types.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeSameNode: both endpoints belong to the same node.
	ErrCodeSameNode ErrorCode = "SAME_NODE"

	// ErrCodeCardinality: the input already holds its single allowed link.
	ErrCodeCardinality ErrorCode = "CARDINALITY"

	// ErrCodeAlreadyLinked: the two slots are already linked.
	ErrCodeAlreadyLinked ErrorCode = "ALREADY_LINKED"

	// ErrCodeNotLinked: Disconnect on two slots that share no link.
	ErrCodeNotLinked ErrorCode = "NOT_LINKED"

	// ErrCodeDeletionDisabled: RemoveNode on a protected node.
	ErrCodeDeletionDisabled ErrorCode = "DELETION_DISABLED"

	// ErrCodeIDConflict: a loaded id is already claimed by another entity.
	ErrCodeIDConflict ErrorCode = "ID_CONFLICT"

	// ErrCodeNotOutput: only output slots can be selected as graph outputs.
	ErrCodeNotOutput ErrorCode = "NOT_OUTPUT"

	// ErrCodeInvalidSpec: a node or slot spec cannot be instantiated.
	ErrCodeInvalidSpec ErrorCode = "INVALID_SPEC"
)

// Error is returned by Graph operations that refuse to act.
// A rejected operation never mutates the graph.
type Error struct {
	Code    ErrorCode
	Message string

	// Slot and Other are the ids of the slots involved, when known.
	Slot  int64
	Other int64
}

func (e *Error) Error() string {
	if e.Slot != 0 && e.Other != 0 {
		return fmt.Sprintf("%s: %s (slot=%d, other=%d)", e.Code, e.Message, e.Slot, e.Other)
	}
	if e.Slot != 0 {
		return fmt.Sprintf("%s: %s (slot=%d)", e.Code, e.Message, e.Slot)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of a graph error, or "" for other errors.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsConnectRejected reports whether err is a compatibility rejection from
// Connect or CanConnect.
func IsConnectRejected(err error) bool {
	switch CodeOf(err) {
	case ErrCodeSamePlace, ErrCodeTypeMismatch, ErrCodeSameNode, ErrCodeCardinality, ErrCodeAlreadyLinked:
		return true
	}
	return false
}

// IsExpired reports whether err came from a reference that no longer resolves.
func IsExpired(err error) bool {
	return CodeOf(err) == ErrCodeExpiredRef
}

// IsNotLinked reports whether err came from disconnecting unlinked slots.
func IsNotLinked(err error) bool {
	return CodeOf(err) == ErrCodeNotLinked
}

func newError(code ErrorCode, msg string, slot, other int64) *Error {
	return &Error{Code: code, Message: msg, Slot: slot, Other: other}
}

func expiredSlot(r SlotRef) *Error {
	return &Error{Code: ErrCodeExpiredRef, Message: fmt.Sprintf("%s has expired", r)}
}

func expiredNode(r NodeRef) *Error {
	return &Error{Code: ErrCodeExpiredRef, Message: fmt.Sprintf("%s has expired", r)}
}
