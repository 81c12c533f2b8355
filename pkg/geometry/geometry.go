// Package geometry converts labeled regions between normalized [0,1]
// coordinates, absolute image pixel coordinates, and the model-input pixel
// space some detection schemas report in.
package geometry

import (
	"fmt"

	"github.com/lexian24/autolabel/pkg/types"
)

// ToAbsolute scales a normalized annotation record into absolute pixel
// points: even coordinate indices scale by width, odd by height. Values
// outside [0,1] are scaled as-is; they mark regions extending beyond the
// visible image and are never clamped.
func ToAbsolute(rec types.AnnotationRecord, imgWidth, imgHeight int) ([]types.Point, error) {
	if imgWidth <= 0 || imgHeight <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", imgWidth, imgHeight)
	}
	if len(rec.Coordinates)%2 != 0 {
		return nil, fmt.Errorf("odd coordinate count %d for %q", len(rec.Coordinates), rec.Label)
	}

	points := make([]types.Point, 0, len(rec.Coordinates)/2)
	for i := 0; i+1 < len(rec.Coordinates); i += 2 {
		points = append(points, types.Point{
			X: rec.Coordinates[i] * float64(imgWidth),
			Y: rec.Coordinates[i+1] * float64(imgHeight),
		})
	}
	return points, nil
}

// ShapeFromRecord converts a normalized annotation record into an
// absolute-pixel shape.
func ShapeFromRecord(rec types.AnnotationRecord, imgWidth, imgHeight int) (types.Shape, error) {
	points, err := ToAbsolute(rec, imgWidth, imgHeight)
	if err != nil {
		return types.Shape{}, err
	}
	return types.Shape{
		Label:  rec.Label,
		Type:   rec.Geometry,
		Points: points,
	}, nil
}

// ToNormalized is the exact inverse of ToAbsolute: each point divides by the
// image width/height. No rounding happens here; rounding is applied only when
// coordinates are rendered for external output.
func ToNormalized(points []types.Point, imgWidth, imgHeight int) ([]float64, error) {
	if imgWidth <= 0 || imgHeight <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", imgWidth, imgHeight)
	}

	coords := make([]float64, 0, len(points)*2)
	for _, p := range points {
		coords = append(coords, p.X/float64(imgWidth), p.Y/float64(imgHeight))
	}
	return coords, nil
}

// ScaleFromModelSpace rescales coordinates reported relative to a resized
// model input into image pixel space: x by imgWidth/modelWidth, y by
// imgHeight/modelHeight. For 4-coordinate boxes the endpoints are reordered
// per axis so the result is always (min,min)-(max,max).
func ScaleFromModelSpace(coords []float64, modelWidth, modelHeight, imgWidth, imgHeight int) ([]float64, error) {
	if modelWidth <= 0 || modelHeight <= 0 {
		return nil, fmt.Errorf("invalid model input dimensions %dx%d", modelWidth, modelHeight)
	}
	if imgWidth <= 0 || imgHeight <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", imgWidth, imgHeight)
	}

	sx := float64(imgWidth) / float64(modelWidth)
	sy := float64(imgHeight) / float64(modelHeight)

	scaled := make([]float64, len(coords))
	for i, c := range coords {
		if i%2 == 0 {
			scaled[i] = c * sx
		} else {
			scaled[i] = c * sy
		}
	}

	if len(scaled) == 4 {
		if scaled[0] > scaled[2] {
			scaled[0], scaled[2] = scaled[2], scaled[0]
		}
		if scaled[1] > scaled[3] {
			scaled[1], scaled[3] = scaled[3], scaled[1]
		}
	}
	return scaled, nil
}

// BoundingBox returns the axis-aligned bounding box of a point set as
// (x1, y1, x2, y2) with x1<=x2 and y1<=y2.
func BoundingBox(points []types.Point) (x1, y1, x2, y2 float64) {
	if len(points) == 0 {
		return 0, 0, 0, 0
	}
	x1, y1 = points[0].X, points[0].Y
	x2, y2 = x1, y1
	for _, p := range points[1:] {
		if p.X < x1 {
			x1 = p.X
		}
		if p.X > x2 {
			x2 = p.X
		}
		if p.Y < y1 {
			y1 = p.Y
		}
		if p.Y > y2 {
			y2 = p.Y
		}
	}
	return x1, y1, x2, y2
}
