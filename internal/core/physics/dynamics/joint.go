package dynamics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/pkg/arena"
)

// BallJoint pins a point of Body1 to a point of Body2 while leaving all
// rotations free. Anchors are expressed in each body's local frame.
type BallJoint struct {
	Body1        BodyHandle
	Body2        BodyHandle
	LocalAnchor1 mgl64.Vec3
	LocalAnchor2 mgl64.Vec3
}

type JointSet struct {
	joints *arena.Arena[BallJoint]
}

func NewJointSet() *JointSet {
	return &JointSet{joints: arena.New[BallJoint](0)}
}

func (s *JointSet) Clone() *JointSet {
	return &JointSet{joints: s.joints.Clone(nil)}
}

func (s *JointSet) Len() int { return s.joints.Len() }

func (s *JointSet) Insert(j BallJoint) JointHandle {
	return JointHandle{s.joints.Insert(j)}
}

func (s *JointSet) Get(h JointHandle) (BallJoint, bool) {
	return s.joints.Get(h.Handle)
}

func (s *JointSet) Remove(h JointHandle) (BallJoint, bool) {
	return s.joints.Remove(h.Handle)
}

func (s *JointSet) All(yield func(JointHandle, *BallJoint) bool) {
	for h, j := range s.joints.All() {
		if !yield(JointHandle{h}, j) {
			return
		}
	}
}

// AttachedTo lists the joints touching body, in handle order.
func (s *JointSet) AttachedTo(body BodyHandle) []JointHandle {
	var out []JointHandle
	for h, j := range s.All {
		if j.Body1 == body || j.Body2 == body {
			out = append(out, h)
		}
	}
	return out
}
