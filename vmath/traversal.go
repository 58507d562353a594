package vmath

import "math"

// GridTraverser walks every grid cell crossed by a segment (supercover DDA) without allocating
// Coordinates are Q32.32; cells are integer grid coordinates
type GridTraverser struct {
	x, y       int
	endX, endY int
	stepX      int
	stepY      int

	// Parametric distance to the next vertical/horizontal cell boundary and per-cell increment
	nextX, nextY   int64
	deltaX, deltaY int64

	started bool
	done    bool
}

// NewGridTraverser starts a walk from (x1, y1) to (x2, y2)
func NewGridTraverser(x1, y1, x2, y2 int64) GridTraverser {
	t := GridTraverser{
		x: ToInt(x1), y: ToInt(y1),
		endX: ToInt(x2), endY: ToInt(y2),
	}
	t.stepX, t.deltaX, t.nextX = axisSetup(x1, x2-x1)
	t.stepY, t.deltaY, t.nextY = axisSetup(y1, y2-y1)
	return t
}

// axisSetup returns step direction, per-cell parametric increment and distance to the first boundary
func axisSetup(start, d int64) (step int, delta, next int64) {
	if d == 0 {
		return 1, 0, math.MaxInt64
	}
	step = 1
	frac := Scale - (start & Mask)
	if d < 0 {
		step = -1
		d = -d
		frac = start & Mask
	}
	delta = Div(Scale, d)
	return step, delta, Mul(frac, delta)
}

// Next advances to the next cell, reporting false once the end cell was visited
func (t *GridTraverser) Next() bool {
	if t.done {
		return false
	}
	if !t.started {
		t.started = true
		return true
	}
	if t.x == t.endX && t.y == t.endY {
		t.done = true
		return false
	}

	switch {
	case t.nextX < t.nextY:
		if t.x != t.endX {
			t.advanceX()
		} else {
			t.advanceY()
		}
	case t.nextX > t.nextY:
		if t.y != t.endY {
			t.advanceY()
		} else {
			t.advanceX()
		}
	default:
		// Corner crossing visits the diagonal cell directly
		if t.x != t.endX {
			t.advanceX()
		}
		if t.y != t.endY {
			t.advanceY()
		}
	}
	return true
}

func (t *GridTraverser) advanceX() {
	t.x += t.stepX
	t.nextX += t.deltaX
}

func (t *GridTraverser) advanceY() {
	t.y += t.stepY
	t.nextY += t.deltaY
}

// Pos returns the current cell
func (t *GridTraverser) Pos() (int, int) {
	return t.x, t.y
}

// RayEnd returns the end point of a ray of length dist along (dirX, dirY)
// The direction is normalized first; ok is false for a zero direction or non-positive length
func RayEnd(originX, originY, dirX, dirY, dist int64) (endX, endY int64, ok bool) {
	if dist <= 0 {
		return originX, originY, false
	}
	nx, ny := Normalize2D(dirX, dirY)
	if nx == 0 && ny == 0 {
		return originX, originY, false
	}
	sx, sy := ScaleVector(nx, ny, dist)
	return originX + sx, originY + sy, true
}
