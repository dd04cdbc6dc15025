// Package group provides the coordination a fixed set of filter workers
// needs: rank discovery, a one-shot broadcast from a root rank, and a
// barrier. Members of a group must call Broadcast and Barrier in the same
// order; each call is matched with the calls of the same index on every
// other member.
package group

import (
	"context"
	"fmt"

	"medfilt/internal/models"
)

// Group is one member's view of a worker group.
type Group interface {
	// Rank returns this member's 0-based index in the group.
	Rank() int

	// Size returns the number of members in the group.
	Size() int

	// Broadcast distributes value from the member whose rank is root. Every
	// member receives root's value; non-root members ignore their own value.
	Broadcast(ctx context.Context, value int, root int) (int, error)

	// Barrier blocks until every member has entered it.
	Barrier(ctx context.Context) error

	// Close releases the member's resources.
	Close() error
}

func checkRoot(root, size int) error {
	if root < 0 || root >= size {
		return fmt.Errorf("%w: broadcast root %d outside group of %d", models.ErrInvalidArguments, root, size)
	}
	return nil
}
