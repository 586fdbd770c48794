// Package spatial provides the fixed-size vector and matrix arithmetic used
// by frame estimation. Everything here is 3-dimensional by construction, so
// no dynamic matrix library is involved.
package spatial

import "math"

// Vec3 is a 3-component vector in the device's sensor axes.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns the unit vector along v. The second return value is
// false when v is too short to normalize meaningfully.
func (v Vec3) Normalize() (Vec3, bool) {
	n := v.Norm()
	if n < 1e-9 {
		return Vec3{}, false
	}
	return v.Scale(1 / n), true
}

// MeanVec returns the component-wise mean of vs, or the zero vector for an
// empty slice.
func MeanVec(vs []Vec3) Vec3 {
	if len(vs) == 0 {
		return Vec3{}
	}
	var sum Vec3
	for _, v := range vs {
		sum = sum.Add(v)
	}
	return sum.Scale(1 / float64(len(vs)))
}

// Clamp01 clamps x into [0, 1].
func Clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
