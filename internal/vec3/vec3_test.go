package vec3

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const epsilon = 1e-6

func assertVec3Close(t *testing.T, expected, actual Vec3) {
	t.Helper()
	assert.InDeltaf(t, expected.X, actual.X, epsilon, "x: expected %v to be close to %v", actual, expected)
	assert.InDeltaf(t, expected.Y, actual.Y, epsilon, "y: expected %v to be close to %v", actual, expected)
	assert.InDeltaf(t, expected.Z, actual.Z, epsilon, "z: expected %v to be close to %v", actual, expected)
}

func TestNew(t *testing.T) {
	v := New(1, 2, 3)
	assert.Equal(t, 1.0, v.X)
	assert.Equal(t, 2.0, v.Y)
	assert.Equal(t, 3.0, v.Z)
}

func TestDot(t *testing.T) {
	assert.Equal(t, 0.0, Dot(New(1, 0, 0), New(0, 1, 0)))
	assert.Equal(t, 6.0, Dot(New(2, 0, 0), New(3, 0, 0)))
	assert.Equal(t, -1.0, Dot(New(1, 0, 0), New(-1, 0, 0)))
}

func TestCross(t *testing.T) {
	assertVec3Close(t, New(0, 0, 1), Cross(New(1, 0, 0), New(0, 1, 0)))
	assertVec3Close(t, New(0, 0, 0), Cross(New(1, 0, 0), New(2, 0, 0)))
}

func TestLength(t *testing.T) {
	assert.Equal(t, 1.0, Length(New(1, 0, 0)))
	assert.Equal(t, 1.0, Length(New(0, 1, 0)))
	assert.Equal(t, 1.0, Length(New(0, 0, 1)))
	assert.Equal(t, 5.0, Length(New(3, 4, 0)))
}

func TestNormalize(t *testing.T) {
	v := Normalize(New(3, 4, 0))
	assert.InDelta(t, 1.0, Length(v), epsilon)
	assertVec3Close(t, New(0.6, 0.8, 0), v)
}

func TestNormalizeZeroReturnsArbitraryUnit(t *testing.T) {
	v := Normalize(New(0, 0, 0))
	assert.InDelta(t, 1.0, Length(v), epsilon)
}

func TestScale(t *testing.T) {
	assertVec3Close(t, New(2, 4, 6), Scale(New(1, 2, 3), 2))
}

func TestAdd(t *testing.T) {
	assertVec3Close(t, New(5, 7, 9), Add(New(1, 2, 3), New(4, 5, 6)))
}

func TestSub(t *testing.T) {
	assertVec3Close(t, New(3, 3, 3), Sub(New(4, 5, 6), New(1, 2, 3)))
}

func TestRotateAroundAxis(t *testing.T) {
	assertVec3Close(t, New(0, 1, 0), RotateAroundAxis(New(1, 0, 0), New(0, 0, 1), math.Pi/2))
	assertVec3Close(t, New(-1, 0, 0), RotateAroundAxis(New(1, 0, 0), New(0, 0, 1), math.Pi))
	assertVec3Close(t, New(1, 0, 0), RotateAroundAxis(New(1, 0, 0), New(0, 0, 1), 2*math.Pi))
	assertVec3Close(t, New(1, 0, 0), RotateAroundAxis(New(1, 0, 0), New(1, 0, 0), math.Pi/2))
}

func TestRotatePreservesLength(t *testing.T) {
	v := Normalize(New(1, 1, 1))
	axis := Normalize(New(1, 2, 3))
	r := RotateAroundAxis(v, axis, 1.234)
	assert.InDelta(t, 1.0, Length(r), epsilon)
}

func TestRotateNormalizeInPlace(t *testing.T) {
	pos := New(1, 0, 0)
	axis := New(0, 0, 1)
	RotateNormalizeInPlace(&pos, axis, math.Pi/2)
	assertVec3Close(t, New(0, 1, 0), pos)
}

func TestAngularDistance(t *testing.T) {
	assert.InDelta(t, 0.0, AngularDistance(New(1, 0, 0), New(1, 0, 0)), epsilon)
	assert.InDelta(t, math.Pi/2, AngularDistance(New(1, 0, 0), New(0, 1, 0)), epsilon)
	assert.InDelta(t, math.Pi, AngularDistance(New(1, 0, 0), New(-1, 0, 0)), epsilon)
}

func TestSlerpReturnsEndpoints(t *testing.T) {
	a := New(1, 0, 0)
	b := New(0, 1, 0)
	assertVec3Close(t, a, Slerp(a, b, 0))
	assertVec3Close(t, b, Slerp(a, b, 1))
}

func TestSlerpMidpointBetweenOrthogonalVectors(t *testing.T) {
	a := New(1, 0, 0)
	b := New(0, 1, 0)
	mid := Slerp(a, b, 0.5)
	assert.InDelta(t, 1.0, Length(mid), epsilon)
	assert.InDelta(t, math.Sqrt2/2, mid.X, epsilon)
	assert.InDelta(t, math.Sqrt2/2, mid.Y, epsilon)
}

func TestSlerpNearlyOppositeStaysFinite(t *testing.T) {
	a := New(1, 0, 0)
	b := Normalize(New(-1, 1e-8, 0))
	p := Slerp(a, b, 0.5)
	assert.False(t, math.IsNaN(p.X) || math.IsInf(p.X, 0))
	assert.False(t, math.IsNaN(p.Y) || math.IsInf(p.Y, 0))
	assert.False(t, math.IsNaN(p.Z) || math.IsInf(p.Z, 0))
	assert.InDelta(t, 1.0, Length(p), epsilon)
}

func TestArbitraryOrthogonal(t *testing.T) {
	v := Normalize(New(1, 2, 3))
	o := ArbitraryOrthogonal(v)
	assert.InDelta(t, 0.0, Dot(v, o), epsilon)
	assert.InDelta(t, 1.0, Length(o), epsilon)
}

func TestArbitraryOrthogonalAxisAligned(t *testing.T) {
	for _, v := range []Vec3{New(1, 0, 0), New(0, 1, 0), New(0, 0, 1)} {
		o := ArbitraryOrthogonal(v)
		assert.InDelta(t, 0.0, Dot(v, o), epsilon)
		assert.InDelta(t, 1.0, Length(o), epsilon)
	}
}

func TestTangentBasisOrthonormal(t *testing.T) {
	u := Normalize(New(1, 2, 3))
	e1, e2 := BuildTangentBasis(u)
	assert.InDelta(t, 1.0, Length(e1), epsilon)
	assert.InDelta(t, 1.0, Length(e2), epsilon)
	assert.InDelta(t, 0.0, Dot(u, e1), epsilon)
	assert.InDelta(t, 0.0, Dot(u, e2), epsilon)
	assert.InDelta(t, 0.0, Dot(e1, e2), epsilon)
}

func TestTangentBasisNorthPole(t *testing.T) {
	u := New(0, 1, 0)
	e1, e2 := BuildTangentBasis(u)
	assert.InDelta(t, 0.0, Dot(u, e1), epsilon)
	assert.InDelta(t, 0.0, Dot(u, e2), epsilon)
	assert.InDelta(t, 0.0, Dot(e1, e2), epsilon)
}

func TestMap2DTangentRoundTrip(t *testing.T) {
	u := Normalize(New(1, 2, 3))
	e1, e2 := BuildTangentBasis(u)
	dx, dy := 0.6, 0.8
	tangent := Map2DToTangent(dx, dy, e1, e2)
	dx2, dy2 := MapTangentTo2D(tangent, e1, e2)
	l := math.Sqrt(dx*dx + dy*dy)
	assert.InDelta(t, dx/l, dx2, epsilon)
	assert.InDelta(t, dy/l, dy2, epsilon)
}

func TestTangentIsUnitVector(t *testing.T) {
	u := Normalize(New(1, 2, 3))
	e1, e2 := BuildTangentBasis(u)
	assert.InDelta(t, 1.0, Length(Map2DToTangent(3, 4, e1, e2)), epsilon)
}

func TestTangentIsOrthogonalToU(t *testing.T) {
	u := Normalize(New(1, 2, 3))
	e1, e2 := BuildTangentBasis(u)
	tangent := Map2DToTangent(1, 1, e1, e2)
	assert.Less(t, math.Abs(Dot(u, tangent)), epsilon)
}

func TestVelocityDirection(t *testing.T) {
	pos := New(1, 0, 0)
	axis := New(0, 0, 1)
	dir := VelocityDirection(pos, axis, 1.0)
	assertVec3Close(t, New(0, 1, 0), dir)

	dirNeg := VelocityDirection(pos, axis, -1.0)
	assertVec3Close(t, New(0, -1, 0), dirNeg)
}
