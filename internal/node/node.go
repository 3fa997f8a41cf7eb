package node

import (
	"context"

	"github.com/yanun0323/errors"
)

// Node is one concurrently executing unit of a workflow graph.
type Node interface {
	// ID returns the workflow-unique node identifier.
	ID() string
	// Port returns the node's connection surface for wiring.
	Port() *Port
	// Execute runs the node until its work is done or ctx is canceled.
	Execute(ctx context.Context) error
}

// Connect installs origin's output slot as target's input slot.
// The output is fetched by type *T first, so a mismatch at either
// end fails before any node starts.
func Connect[T any](origin Node, originSlot int, target Node, targetSlot int) error {
	out, err := Output[T](origin.Port(), originSlot)
	if err != nil {
		return errors.Wrapf(err, "origin node: %s", origin.ID())
	}

	SetInput(target.Port(), targetSlot, out)

	return nil
}
