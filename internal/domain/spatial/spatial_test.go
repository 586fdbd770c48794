package spatial

import (
	"math"
	"testing"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestVecOperations(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: 5, Z: 6}

	if got := a.Add(b); got != (Vec3{X: 5, Y: 7, Z: 9}) {
		t.Errorf("Add: got %+v", got)
	}
	if got := b.Sub(a); got != (Vec3{X: 3, Y: 3, Z: 3}) {
		t.Errorf("Sub: got %+v", got)
	}
	if got := a.Scale(2); got != (Vec3{X: 2, Y: 4, Z: 6}) {
		t.Errorf("Scale: got %+v", got)
	}
	if got := a.Dot(b); !almost(got, 32) {
		t.Errorf("Dot: got %v", got)
	}
	if got := (Vec3{X: 1}).Cross(Vec3{Y: 1}); got != (Vec3{Z: 1}) {
		t.Errorf("Cross: got %+v", got)
	}
	if got := (Vec3{X: 3, Y: 4}).Norm(); !almost(got, 5) {
		t.Errorf("Norm: got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	v, ok := Vec3{X: 0, Y: 0, Z: -9.8}.Normalize()
	if !ok {
		t.Fatal("expected normalization to succeed")
	}
	if !almost(v.Norm(), 1) || !almost(v.Z, -1) {
		t.Errorf("unexpected unit vector: %+v", v)
	}

	if _, ok := (Vec3{}).Normalize(); ok {
		t.Error("expected zero vector normalization to fail")
	}
}

func TestMeanVec(t *testing.T) {
	vs := []Vec3{{X: 1}, {X: 3}, {Y: 2}}
	mean := MeanVec(vs)
	if !almost(mean.X, 4.0/3) || !almost(mean.Y, 2.0/3) || !almost(mean.Z, 0) {
		t.Errorf("unexpected mean: %+v", mean)
	}

	if got := MeanVec(nil); got != (Vec3{}) {
		t.Errorf("empty mean: got %+v", got)
	}
}

func TestStats(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(xs); !almost(got, 5) {
		t.Errorf("Mean: got %v", got)
	}
	// Population variance of the classic sequence is exactly 4.
	if got := Variance(xs); !almost(got, 4) {
		t.Errorf("Variance: got %v", got)
	}
	if got := StdDev(xs); !almost(got, 2) {
		t.Errorf("StdDev: got %v", got)
	}
	if got := Variance(nil); got != 0 {
		t.Errorf("Variance of empty: got %v", got)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, c := range cases {
		if got := Clamp01(c.in); !almost(got, c.want) {
			t.Errorf("Clamp01(%v): got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCovarianceAndEigenvector(t *testing.T) {
	// Samples spread dominantly along X with slight Y noise.
	var vs []Vec3
	for i := 0; i < 50; i++ {
		vs = append(vs, Vec3{X: float64(i), Y: 0.1 * float64(i%2)})
	}

	cov := Covariance(vs)
	if cov.ColX.Y != cov.ColY.X || cov.ColX.Z != cov.ColZ.X || cov.ColY.Z != cov.ColZ.Y {
		t.Fatal("covariance must be symmetric")
	}

	axis, ok := DominantEigenvector(cov, 24)
	if !ok {
		t.Fatal("expected the iteration to converge")
	}
	if math.Abs(axis.X) < 0.999 {
		t.Errorf("expected dominant axis along X, got %+v", axis)
	}
	if !almost(axis.Norm(), 1) {
		t.Errorf("expected a unit vector, got norm %v", axis.Norm())
	}
}

func TestDominantEigenvectorDegenerate(t *testing.T) {
	if _, ok := DominantEigenvector(Mat3{}, 24); ok {
		t.Error("expected a zero matrix to collapse the iteration")
	}
}

func TestMat3MulVec(t *testing.T) {
	if got := Identity().MulVec(Vec3{X: 1, Y: 2, Z: 3}); got != (Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("identity: got %+v", got)
	}

	// Rotation by 90 degrees about Z maps X onto Y.
	rot := Mat3{ColX: Vec3{Y: 1}, ColY: Vec3{X: -1}, ColZ: Vec3{Z: 1}}
	got := rot.MulVec(Vec3{X: 1})
	if !almost(got.Y, 1) || !almost(got.X, 0) {
		t.Errorf("rotation: got %+v", got)
	}
}
