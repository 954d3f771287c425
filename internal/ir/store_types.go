package ir

import "fmt"

// JournalKind names one kind of recorded graph edit or propagation.
type JournalKind string

const (
	JournalAddNode       JournalKind = "add_node"
	JournalRemoveNode    JournalKind = "remove_node"
	JournalConnect       JournalKind = "connect"
	JournalReconnect     JournalKind = "reconnect"
	JournalDisconnect    JournalKind = "disconnect"
	JournalBreakAll      JournalKind = "break_all"
	JournalDisconnectAll JournalKind = "disconnect_all"
	JournalSetPayload    JournalKind = "set_payload"
	JournalNotify        JournalKind = "notify"
	JournalBackNotify    JournalKind = "back_notify"
	JournalBroadcast     JournalKind = "broadcast"
	JournalSelectOutput  JournalKind = "select_output"
	JournalLoad          JournalKind = "load"
)

// JournalKinds lists every kind in declaration order.
var JournalKinds = []JournalKind{
	JournalAddNode, JournalRemoveNode, JournalConnect, JournalReconnect,
	JournalDisconnect, JournalBreakAll, JournalDisconnectAll, JournalSetPayload,
	JournalNotify, JournalBackNotify, JournalBroadcast, JournalSelectOutput, JournalLoad,
}

// ParseJournalKind validates a journal kind.
func ParseJournalKind(s string) (JournalKind, error) {
	for _, k := range JournalKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown journal kind %q", s)
}

// ChangesLinks reports whether entries of this kind can add or remove links.
func (k JournalKind) ChangesLinks() bool {
	switch k {
	case JournalConnect, JournalReconnect, JournalDisconnect, JournalBreakAll,
		JournalDisconnectAll, JournalRemoveNode, JournalLoad:
		return true
	}
	return false
}

// JournalEntry is one applied engine command (store-layer).
//
// Seq is the engine's logical clock; entries are totally ordered by it.
// Slot and Other address the command's operands by node:slot id; for
// node-level commands only Slot.Node is set. Error is the command's
// failure message, empty when it succeeded.
type JournalEntry struct {
	Seq   int64       `json:"seq"`
	Kind  JournalKind `json:"kind"`
	Token string      `json:"token,omitempty"` // propagation token, for notify kinds
	Slot  SlotAddr    `json:"slot"`
	Other SlotAddr    `json:"other"`
	Link  int64       `json:"link,omitempty"` // link id created by connect
	Event string      `json:"event,omitempty"`
	Args  IRObject    `json:"args"`
	Error string      `json:"error,omitempty"`
}

// Failed reports whether the command was rejected.
func (e JournalEntry) Failed() bool { return e.Error != "" }

// DeliveryRecord is one row of a journaled propagation report (store-layer).
type DeliveryRecord struct {
	JournalSeq int64 `json:"journal_seq"`
	Ord        int   `json:"ord"` // delivery order within the propagation
	Depth      int   `json:"depth"`
	Emitter    int64 `json:"emitter,omitempty"`
	Receiver   int64 `json:"receiver,omitempty"`
	Node       int64 `json:"node"`
	Pushed     bool  `json:"pushed"`
}

// SnapshotRecord is a stored scene document (store-layer).
type SnapshotRecord struct {
	ID           string   `json:"id"` // UUIDv7
	Name         string   `json:"name"`
	Seq          int64    `json:"seq"` // journal position the snapshot reflects
	TopologyHash string   `json:"topology_hash"`
	NextID       int64    `json:"next_id"` // allocator position when saved
	Document     Document `json:"document"`
}
