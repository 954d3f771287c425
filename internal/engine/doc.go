// Package engine runs a Lumo editing session on a single writer goroutine.
//
// ARCHITECTURE:
//
// Single-Writer Command Loop:
// Graph edits and notifications arrive as Commands from any goroutine
// (Submit) and are applied one at a time by Run. The graph itself is not
// safe for concurrent use; the loop is what makes it so. A command's
// propagation runs to completion inside that command, so events never
// interleave.
//
// Command Processing Flow:
// 1. Submit enqueues the command and waits for its reply
// 2. Run dequeues it and stamps it with the next Clock seq
// 3. The command resolves its node:slot addresses and mutates the graph
// 4. The outcome, success or rejection, becomes a journal entry
// 5. With a store configured, the entry and its deliveries are persisted
//
// Rejected commands are journaled too, with their error, so the journal is
// a complete record of what was asked. Store failures are logged and
// returned to the submitter; the loop keeps running.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every command gets a strictly increasing seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Stable Addresses:
// Commands name slots by node:slot id, not by in-memory reference, so a
// journal can be replayed into a fresh graph (Restore).
package engine
