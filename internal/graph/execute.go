package graph

import (
	"context"
	"fmt"
)

// Execute runs every root subtree for one frame. Within a subtree, children
// run before their parent, so a parent always sees its children's outputs
// for the same frame.
func (g *Graph) Execute(ctx context.Context, frame int64) error {
	for _, r := range g.Roots() {
		n, ok := g.Node(r)
		if !ok {
			continue
		}
		if err := g.execute(ctx, n, frame); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteChildren runs the subtrees below a node for one frame, children
// first, without running the node itself.
func (g *Graph) ExecuteChildren(ctx context.Context, ref NodeRef, frame int64) error {
	n, ok := g.Node(ref)
	if !ok {
		return expiredNode(ref)
	}
	for _, c := range n.Children() {
		child, ok := g.Node(c)
		if !ok {
			continue
		}
		if err := g.execute(ctx, child, frame); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) execute(ctx context.Context, n *Node, frame int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.ExecuteChildren(ctx, n.ref, frame); err != nil {
		return err
	}
	if n.hooks.OnExecute == nil {
		return nil
	}
	if err := n.hooks.OnExecute(ctx, g, n, frame); err != nil {
		return fmt.Errorf("execute node %d (%s) frame %d: %w", n.id, n.typeName, frame, err)
	}
	return nil
}
