package geo

import (
	"math"

	"github.com/wayfind/indoornav/pkg/core"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// up is the world vertical axis; heading is measured about it.
var up = r3.Vec{Y: 1}

// Vec converts a core position to a gonum vector.
func Vec(p core.Position3D) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// Position converts a gonum vector to a core position.
func Position(v r3.Vec) core.Position3D {
	return core.Position3D{X: v.X, Y: v.Y, Z: v.Z}
}

// Quat converts a core rotation to a gonum quaternion.
func Quat(r core.Rotation) quat.Number {
	return quat.Number{Real: r.W, Imag: r.X, Jmag: r.Y, Kmag: r.Z}
}

// RotationFromQuat converts a gonum quaternion to a core rotation.
func RotationFromQuat(q quat.Number) core.Rotation {
	return core.Rotation{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
}

// Normalize returns r scaled to unit length. A zero or non-finite
// quaternion normalizes to the identity.
func Normalize(r core.Rotation) core.Rotation {
	q := Quat(r)
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return core.IdentityRotation
	}
	return RotationFromQuat(quat.Scale(1/n, q))
}

// gimbalLimit is the |cos pitch| below which heading and roll share an axis.
const gimbalLimit = 1e-9

// YawOf returns the heading of r in radians about +Y, using the
// yaw-pitch-roll (Y-X-Z) decomposition common to AR runtimes.
// At straight up or down pitch roll is folded into the heading.
func YawOf(r core.Rotation) float64 {
	r = Normalize(r)
	sinYawCos := 2 * (r.X*r.Z + r.W*r.Y)
	cosYawCos := 1 - 2*(r.X*r.X+r.Y*r.Y)
	if math.Hypot(sinYawCos, cosYawCos) < gimbalLimit {
		return math.Atan2(2*(r.W*r.Y-r.X*r.Z), 1-2*(r.Y*r.Y+r.Z*r.Z))
	}
	return math.Atan2(sinYawCos, cosYawCos)
}

// YawRotation returns a rotation of yaw radians about +Y.
func YawRotation(yaw float64) core.Rotation {
	return RotationFromQuat(quat.Number(r3.NewRotation(yaw, up)))
}

// LevelRotation keeps only the heading of r; pitch and roll are discarded.
func LevelRotation(r core.Rotation) core.Rotation {
	return YawRotation(YawOf(r))
}

// LevelPose returns p with its rotation reduced to yaw only.
func LevelPose(p core.Pose) core.Pose {
	return core.Pose{Position: p.Position, Rotation: LevelRotation(p.Rotation)}
}

// ToWorld maps a point from the local frame of pose into world space.
func ToWorld(pose core.Pose, local core.Position3D) core.Position3D {
	rot := r3.Rotation(Quat(Normalize(pose.Rotation)))
	return Position(r3.Add(rot.Rotate(Vec(local)), Vec(pose.Position)))
}

// ToLocal maps a world-space point into the local frame of pose.
func ToLocal(pose core.Pose, world core.Position3D) core.Position3D {
	inv := r3.Rotation(quat.Conj(Quat(Normalize(pose.Rotation))))
	return Position(inv.Rotate(r3.Sub(Vec(world), Vec(pose.Position))))
}

// Distance is the euclidean distance between two points.
func Distance(a, b core.Position3D) float64 {
	return r3.Norm(r3.Sub(Vec(a), Vec(b)))
}
