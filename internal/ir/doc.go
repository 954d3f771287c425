// Package ir provides the foundational value types shared by every Lumo package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the payload-type tags,
// event kinds and the persisted graph document as the bottom layer.
//
// Key design constraints:
//   - NO float types anywhere - colors are 8-bit channels, positions are int64
//   - All JSON tags use snake_case
//   - Ids are int64 drawn from one process-wide counter (nodes, slots, links)
//   - Topology hashes use RFC 8785 canonical JSON with domain separation
package ir
