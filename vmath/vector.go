package vmath

// Normalize2D returns the Euclidean unit vector in Q32.32, zero-safe
func Normalize2D(x, y int64) (nx, ny int64) {
	mag := Magnitude(x, y)
	if mag == 0 {
		return 0, 0
	}
	return Div(x, mag), Div(y, mag)
}

// Magnitude returns sqrt(x² + y²)
func Magnitude(x, y int64) int64 {
	return Sqrt(Mul(x, x) + Mul(y, y))
}

// Distance between two Q32.32 points
func Distance(x1, y1, x2, y2 int64) int64 {
	return Magnitude(x2-x1, y2-y1)
}

func ScaleVector(x, y, factor int64) (sx, sy int64) {
	return Mul(x, factor), Mul(y, factor)
}

func DotProduct(x1, y1, x2, y2 int64) int64 {
	return Mul(x1, x2) + Mul(y1, y2)
}

// Perpendicular returns the vector rotated 90° counter-clockwise
func Perpendicular(x, y int64) (px, py int64) {
	return -y, x
}
