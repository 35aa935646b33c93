package world

import "github.com/zeusync/physync/internal/core/physics/dynamics"

// BodyEvent is the payload of body.added and body.removed.
type BodyEvent struct {
	ID   string
	Body dynamics.BodyHandle
}

// ColliderEvent is the payload of collider.added and collider.removed. ID
// is the external id of the parent body.
type ColliderEvent struct {
	ID       string
	Collider dynamics.ColliderHandle
}

// ContactEvent is the payload of contact.started and contact.stopped.
type ContactEvent struct {
	ID1, ID2             string
	Collider1, Collider2 dynamics.ColliderHandle
}

// StepEvent is the payload of world.stepped and world.rewound.
type StepEvent struct {
	Tick     uint32
	Checksum uint64
}
