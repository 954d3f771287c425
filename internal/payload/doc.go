// Package payload defines the data that moves along links and the
// per-node table that backs a node's getters and setters.
//
// Each payload type maps to one Go struct (TEXTURE_2D, TEXTURE_3D and
// TEXTURE_CUBE all move a *Texture; MODEL and MESH move a *Model). Bind
// turns a Table into the graph.Capability the router calls, so a node
// built from a catalog declaration needs no hand-written accessors.
package payload
