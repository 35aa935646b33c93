package world

import (
	"errors"
	"fmt"

	"github.com/zeusync/physync/internal/core/physics/dynamics"
)

var (
	ErrBodyNotFound    = errors.New("body not found")
	ErrDegenerateShape = errors.New("degenerate collider shape")
	ErrNotRegistered   = errors.New("rigid body is not registered")
	ErrSameBody        = errors.New("joint needs two different bodies")
)

// ConsistencyError reports simulated state that no longer matches its
// external counterpart. The world panics with it.
type ConsistencyError struct {
	Tick   uint32
	Body   dynamics.BodyHandle
	ID     string
	Reason string
}

func (e *ConsistencyError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("tick %d: body %s (%q): %s", e.Tick, e.Body, e.ID, e.Reason)
	}
	return fmt.Sprintf("tick %d: body %s: %s", e.Tick, e.Body, e.Reason)
}
