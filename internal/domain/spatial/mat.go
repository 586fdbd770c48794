package spatial

// Mat3 is a 3×3 matrix stored as three column vectors. Rotation frames use
// the columns as the frame's X/Y/Z axes expressed in sensor coordinates.
type Mat3 struct {
	ColX Vec3 `json:"col_x"`
	ColY Vec3 `json:"col_y"`
	ColZ Vec3 `json:"col_z"`
}

// Identity returns the identity matrix.
func Identity() Mat3 {
	return Mat3{
		ColX: Vec3{X: 1},
		ColY: Vec3{Y: 1},
		ColZ: Vec3{Z: 1},
	}
}

// MulVec returns m·v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return m.ColX.Scale(v.X).Add(m.ColY.Scale(v.Y)).Add(m.ColZ.Scale(v.Z))
}

// Covariance returns the 3×3 covariance matrix of vs after mean-centering.
// The result is symmetric; population normalization (1/n) is used.
func Covariance(vs []Vec3) Mat3 {
	if len(vs) == 0 {
		return Mat3{}
	}
	mean := MeanVec(vs)
	var xx, xy, xz, yy, yz, zz float64
	for _, v := range vs {
		c := v.Sub(mean)
		xx += c.X * c.X
		xy += c.X * c.Y
		xz += c.X * c.Z
		yy += c.Y * c.Y
		yz += c.Y * c.Z
		zz += c.Z * c.Z
	}
	n := float64(len(vs))
	return Mat3{
		ColX: Vec3{X: xx / n, Y: xy / n, Z: xz / n},
		ColY: Vec3{X: xy / n, Y: yy / n, Z: yz / n},
		ColZ: Vec3{X: xz / n, Y: yz / n, Z: zz / n},
	}
}

// DominantEigenvector approximates the eigenvector belonging to the largest
// eigenvalue of a symmetric matrix via power iteration: repeatedly multiply
// and renormalize for a fixed number of rounds. The second return value is
// false when the iteration collapses (e.g. a zero matrix).
func DominantEigenvector(m Mat3, rounds int) (Vec3, bool) {
	v := Vec3{X: 1, Y: 1, Z: 1}
	v, _ = v.Normalize()
	for i := 0; i < rounds; i++ {
		next, ok := m.MulVec(v).Normalize()
		if !ok {
			return Vec3{}, false
		}
		v = next
	}
	return v, true
}
