package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/physync/internal/core/physics/geom"
)

// ContactInput is one manifold between two bodies as seen by the solver.
// Warm holds the impulses the pair ended the previous step with. Solve
// fills Impulses with one entry per manifold point and leaves it nil when
// the manifold was skipped.
type ContactInput struct {
	Body1, Body2 BodyHandle
	Manifold     geom.Manifold
	Friction     float64
	Restitution  float64
	Warm         []ContactImpulse
	Impulses     []ContactImpulse
}

// ContactImpulse is the accumulated impulse of one contact point. Local is
// the point on the first body in that body's frame and is used to match the
// point again on the next step.
type ContactImpulse struct {
	Local    mgl64.Vec3
	Normal   float64
	Friction mgl64.Vec3
}

// warmMatchSqDist is how far a contact point may drift between steps and
// still inherit its previous impulse.
const warmMatchSqDist = 0.05 * 0.05

func matchImpulse(warm []ContactImpulse, local mgl64.Vec3) (ContactImpulse, bool) {
	best, bestDist := -1, warmMatchSqDist
	for i, w := range warm {
		if d := w.Local.Sub(local).LenSqr(); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return ContactImpulse{}, false
	}
	return warm[best], true
}

// CombineMaterials averages friction and restitution of two colliders.
func CombineMaterials(a, b Material) (friction, restitution float64) {
	return (a.Friction + b.Friction) / 2, (a.Restitution + b.Restitution) / 2
}

type solverBody struct {
	handle  BodyHandle
	pose    geom.Isometry
	linvel  mgl64.Vec3
	angvel  mgl64.Vec3
	pushLin mgl64.Vec3
	pushAng mgl64.Vec3
	invMass float64
	invI    mgl64.Mat3
	com     mgl64.Vec3
	dynamic bool
}

func (b *solverBody) velocityAt(r mgl64.Vec3) mgl64.Vec3 {
	return b.linvel.Add(b.angvel.Cross(r))
}

func (b *solverBody) applyImpulse(impulse, r mgl64.Vec3) {
	if !b.dynamic {
		return
	}
	b.linvel = b.linvel.Add(impulse.Mul(b.invMass))
	b.angvel = b.angvel.Add(b.invI.Mul3x1(r.Cross(impulse)))
}

func (b *solverBody) pushAt(r mgl64.Vec3) mgl64.Vec3 {
	return b.pushLin.Add(b.pushAng.Cross(r))
}

func (b *solverBody) applyPush(impulse, r mgl64.Vec3) {
	if !b.dynamic {
		return
	}
	b.pushLin = b.pushLin.Add(impulse.Mul(b.invMass))
	b.pushAng = b.pushAng.Add(b.invI.Mul3x1(r.Cross(impulse)))
}

type contactRow struct {
	contact  int
	b1, b2   int
	local    mgl64.Vec3
	r1, r2   mgl64.Vec3
	normal   mgl64.Vec3
	t1, t2   mgl64.Vec3
	mass     float64
	t1Mass   float64
	t2Mass   float64
	target   float64
	bias     float64
	friction float64
	impulse  float64
	t1Acc    float64
	t2Acc    float64
	push     float64
}

type jointRow struct {
	b1, b2 int
	r1, r2 mgl64.Vec3
	invK   mgl64.Mat3
	bias   mgl64.Vec3
}

// Solver resolves contact and joint constraints at the velocity level with
// sequential impulses. Bodies are visited in the order constraints reference
// them, which keeps results independent of map iteration.
//
// Contacts start from the impulses of the previous step. Penetration is
// corrected by a separate push velocity that moves bodies during the next
// position integration and is then dropped, so correction adds no energy.
type Solver struct {
	bodies []solverBody
	index  map[BodyHandle]int
	rows   []contactRow
	joints []jointRow
}

func NewSolver() *Solver {
	return &Solver{index: make(map[BodyHandle]int)}
}

func (s *Solver) reset() {
	s.bodies = s.bodies[:0]
	s.rows = s.rows[:0]
	s.joints = s.joints[:0]
	clear(s.index)
}

func (s *Solver) bodyIndex(bodies *BodySet, h BodyHandle) (int, bool) {
	if i, ok := s.index[h]; ok {
		return i, true
	}
	b := bodies.GetMut(h)
	if b == nil {
		return 0, false
	}

	sb := solverBody{
		handle: h,
		pose:   b.position,
		linvel: b.linvel,
		angvel: b.angvel,
		com:    b.CenterOfMass(),
	}
	if b.IsDynamic() && !b.sleeping {
		sb.dynamic = true
		sb.invMass = b.invMass
		sb.invI = b.InvInertiaWorld()
	}
	if b.IsFixed() || b.sleeping {
		sb.linvel = mgl64.Vec3{}
		sb.angvel = mgl64.Vec3{}
	}

	i := len(s.bodies)
	s.bodies = append(s.bodies, sb)
	s.index[h] = i
	return i, true
}

// Solve updates the velocities of the dynamic bodies touched by contacts or
// joints.
func (s *Solver) Solve(bodies *BodySet, contacts []ContactInput, joints *JointSet, params IntegrationParameters) {
	s.reset()

	for ci := range contacts {
		c := &contacts[ci]
		c.Impulses = nil
		i1, ok1 := s.bodyIndex(bodies, c.Body1)
		i2, ok2 := s.bodyIndex(bodies, c.Body2)
		if !ok1 || !ok2 || (!s.bodies[i1].dynamic && !s.bodies[i2].dynamic) {
			continue
		}
		for _, p := range c.Manifold.Points {
			s.rows = append(s.rows, s.buildContactRow(ci, i1, i2, *c, p, params))
		}
	}

	if joints != nil {
		for _, j := range joints.All {
			i1, ok1 := s.bodyIndex(bodies, j.Body1)
			i2, ok2 := s.bodyIndex(bodies, j.Body2)
			if !ok1 || !ok2 {
				continue
			}
			if row, ok := s.buildJointRow(bodies, i1, i2, j, params); ok {
				s.joints = append(s.joints, row)
			}
		}
	}

	if len(s.rows) == 0 && len(s.joints) == 0 {
		return
	}

	for i := range s.rows {
		s.warmStart(&s.rows[i])
	}
	for iter := 0; iter < params.SolverIterations; iter++ {
		for i := range s.joints {
			s.solveJoint(&s.joints[i])
		}
		for i := range s.rows {
			s.solveContact(&s.rows[i])
		}
	}
	for iter := 0; iter < params.SolverIterations; iter++ {
		for i := range s.rows {
			s.solvePush(&s.rows[i])
		}
	}

	for i := range s.rows {
		row := &s.rows[i]
		c := &contacts[row.contact]
		c.Impulses = append(c.Impulses, ContactImpulse{
			Local:    row.local,
			Normal:   row.impulse,
			Friction: row.t1.Mul(row.t1Acc).Add(row.t2.Mul(row.t2Acc)),
		})
	}

	for i := range s.bodies {
		sb := &s.bodies[i]
		if !sb.dynamic {
			continue
		}
		if b := bodies.GetMut(sb.handle); b != nil {
			b.linvel = sb.linvel
			b.angvel = sb.angvel
			b.pushLinvel = sb.pushLin
			b.pushAngvel = sb.pushAng
		}
	}
}

func (s *Solver) buildContactRow(ci, i1, i2 int, c ContactInput, p geom.ContactPoint, params IntegrationParameters) contactRow {
	b1, b2 := &s.bodies[i1], &s.bodies[i2]
	n := c.Manifold.Normal
	mid := p.PointA.Add(p.PointB).Mul(0.5)

	row := contactRow{
		contact:  ci,
		b1:       i1,
		b2:       i2,
		local:    b1.pose.InverseTransformPoint(p.PointA),
		r1:       mid.Sub(b1.com),
		r2:       mid.Sub(b2.com),
		normal:   n,
		friction: c.Friction,
	}
	row.t1, row.t2 = geom.Tangents(n)
	row.mass = effectiveMass(b1, b2, row.r1, row.r2, n)
	row.t1Mass = effectiveMass(b1, b2, row.r1, row.r2, row.t1)
	row.t2Mass = effectiveMass(b1, b2, row.r1, row.r2, row.t2)

	dt := params.Dt
	if p.Dist > 0 {
		row.target = -p.Dist / dt
	} else {
		row.bias = params.ERP / dt * math.Max(0, -p.Dist-params.AllowedLinearError)
	}

	vn := b2.velocityAt(row.r2).Sub(b1.velocityAt(row.r1)).Dot(n)
	if c.Restitution > 0 && vn < -params.RestitutionThreshold {
		row.target = math.Max(row.target, -c.Restitution*vn)
	}

	if w, ok := matchImpulse(c.Warm, row.local); ok {
		row.impulse = w.Normal
		row.t1Acc = w.Friction.Dot(row.t1)
		row.t2Acc = w.Friction.Dot(row.t2)
	}
	return row
}

func (s *Solver) warmStart(row *contactRow) {
	if row.impulse == 0 && row.t1Acc == 0 && row.t2Acc == 0 {
		return
	}
	b1, b2 := &s.bodies[row.b1], &s.bodies[row.b2]
	impulse := row.normal.Mul(row.impulse).
		Add(row.t1.Mul(row.t1Acc)).
		Add(row.t2.Mul(row.t2Acc))
	b1.applyImpulse(impulse.Mul(-1), row.r1)
	b2.applyImpulse(impulse, row.r2)
}

func (s *Solver) solvePush(row *contactRow) {
	if row.bias == 0 && row.push == 0 {
		return
	}
	b1, b2 := &s.bodies[row.b1], &s.bodies[row.b2]

	vn := b2.pushAt(row.r2).Sub(b1.pushAt(row.r1)).Dot(row.normal)
	next := math.Max(row.push+row.mass*(row.bias-vn), 0)
	lambda := next - row.push
	row.push = next

	impulse := row.normal.Mul(lambda)
	b1.applyPush(impulse.Mul(-1), row.r1)
	b2.applyPush(impulse, row.r2)
}

func effectiveMass(b1, b2 *solverBody, r1, r2, dir mgl64.Vec3) float64 {
	k := b1.invMass + b2.invMass
	rn1 := r1.Cross(dir)
	rn2 := r2.Cross(dir)
	k += rn1.Dot(b1.invI.Mul3x1(rn1))
	k += rn2.Dot(b2.invI.Mul3x1(rn2))
	if k <= 1e-15 {
		return 0
	}
	return 1 / k
}

func (s *Solver) solveContact(row *contactRow) {
	b1, b2 := &s.bodies[row.b1], &s.bodies[row.b2]

	vn := b2.velocityAt(row.r2).Sub(b1.velocityAt(row.r1)).Dot(row.normal)
	lambda := row.mass * (row.target - vn)
	next := math.Max(row.impulse+lambda, 0)
	lambda = next - row.impulse
	row.impulse = next

	impulse := row.normal.Mul(lambda)
	b1.applyImpulse(impulse.Mul(-1), row.r1)
	b2.applyImpulse(impulse, row.r2)

	limit := row.friction * row.impulse
	row.t1Acc = s.solveFriction(b1, b2, row, row.t1, row.t1Mass, row.t1Acc, limit)
	row.t2Acc = s.solveFriction(b1, b2, row, row.t2, row.t2Mass, row.t2Acc, limit)
}

func (s *Solver) solveFriction(b1, b2 *solverBody, row *contactRow, tangent mgl64.Vec3, mass, acc, limit float64) float64 {
	vt := b2.velocityAt(row.r2).Sub(b1.velocityAt(row.r1)).Dot(tangent)
	next := clampf(acc-mass*vt, -limit, limit)
	lambda := next - acc

	impulse := tangent.Mul(lambda)
	b1.applyImpulse(impulse.Mul(-1), row.r1)
	b2.applyImpulse(impulse, row.r2)
	return next
}

func (s *Solver) buildJointRow(bodies *BodySet, i1, i2 int, j *BallJoint, params IntegrationParameters) (jointRow, bool) {
	body1, body2 := bodies.GetMut(j.Body1), bodies.GetMut(j.Body2)
	b1, b2 := &s.bodies[i1], &s.bodies[i2]
	if !b1.dynamic && !b2.dynamic {
		return jointRow{}, false
	}

	a1 := body1.position.TransformPoint(j.LocalAnchor1)
	a2 := body2.position.TransformPoint(j.LocalAnchor2)
	r1 := a1.Sub(b1.com)
	r2 := a2.Sub(b2.com)

	s1 := geom.Skew(r1)
	s2 := geom.Skew(r2)
	k := mgl64.Ident3().Mul(b1.invMass + b2.invMass).
		Sub(s1.Mul3(b1.invI).Mul3(s1)).
		Sub(s2.Mul3(b2.invI).Mul3(s2))
	if math.Abs(k.Det()) <= 1e-15 {
		return jointRow{}, false
	}

	return jointRow{
		b1:   i1,
		b2:   i2,
		r1:   r1,
		r2:   r2,
		invK: k.Inv(),
		bias: a2.Sub(a1).Mul(params.JointERP / params.Dt),
	}, true
}

func (s *Solver) solveJoint(row *jointRow) {
	b1, b2 := &s.bodies[row.b1], &s.bodies[row.b2]

	cdot := b2.velocityAt(row.r2).Sub(b1.velocityAt(row.r1))
	impulse := row.invK.Mul3x1(cdot.Add(row.bias).Mul(-1))
	b1.applyImpulse(impulse.Mul(-1), row.r1)
	b2.applyImpulse(impulse, row.r2)
}

func clampf(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
