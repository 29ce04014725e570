// geometry.go - Maps normalized 0-999 quads onto pixel space

package processor

import (
	"image"
	"math"
)

// NormalizedMax is the upper bound of the model's coordinate space on each axis.
const NormalizedMax = 999

// Point is a pixel coordinate, serialized as [x, y].
type Point [2]int

// Box is an axis-aligned rectangle as four corners, clockwise from top-left.
type Box [4]Point

// MapQuad scales q to a width x height image. Each axis is scaled on its own and
// rounded to the nearest pixel.
func MapQuad(q Quad, width, height int) Box {
	x1, x2 := scaleCoord(q[0], width), scaleCoord(q[2], width)
	y1, y2 := scaleCoord(q[1], height), scaleCoord(q[3], height)
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
}

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b[0][0], b[0][1], b[2][0], b[2][1])
}

func scaleCoord(v, dim int) int {
	return int(math.Round(float64(v) / NormalizedMax * float64(dim)))
}
