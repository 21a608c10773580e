package softmax

import (
	"math"

	"drawing-trainer/core/models"
)

// featureCount is the fixed length of the geometric feature vector
const featureCount = 12

// cornerAngle is the minimum turn (radians) between consecutive segments
// counted as a corner
const cornerAngle = math.Pi / 4

// extractFeatures maps stroke data to a feature vector scaled to roughly
// unit range. The features capture the geometry that separates the shape
// classes: closure, corners, aspect and ink distribution.
func extractFeatures(data models.StrokeData) []float64 {
	canvasW := data.Canvas.Width
	canvasH := data.Canvas.Height
	if canvasW <= 0 {
		canvasW = 400
	}
	if canvasH <= 0 {
		canvasH = 400
	}
	diagonal := math.Hypot(canvasW, canvasH)

	var (
		totalPoints int
		ink         float64
		segments    int
		corners     int
		turnSum     float64
		sumX, sumY  float64
	)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	var first, last *models.Point
	for si := range data.Strokes {
		points := data.Strokes[si].Points
		totalPoints += len(points)
		if len(points) > 0 {
			if first == nil {
				first = &points[0]
			}
			last = &points[len(points)-1]
		}

		var prevDX, prevDY float64
		for i := range points {
			p := points[i]
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
			sumX += p.X
			sumY += p.Y

			if i == 0 {
				continue
			}
			dx := p.X - points[i-1].X
			dy := p.Y - points[i-1].Y
			ink += math.Hypot(dx, dy)
			segments++

			if i >= 2 {
				turn := math.Abs(angleBetween(prevDX, prevDY, dx, dy))
				turnSum += turn
				if turn > cornerAngle {
					corners++
				}
			}
			prevDX, prevDY = dx, dy
		}
	}

	f := make([]float64, featureCount)
	if totalPoints == 0 {
		return f
	}

	bboxW := maxX - minX
	bboxH := maxY - minY
	bboxDiag := math.Hypot(bboxW, bboxH)

	f[0] = clamp(float64(len(data.Strokes)) / 10)
	f[1] = clamp(float64(totalPoints) / 200)
	f[2] = clamp(ink / diagonal / 3)
	f[3] = bboxW / canvasW
	f[4] = bboxH / canvasH
	f[5] = bboxW / (bboxW + bboxH + 1e-9)
	if first != nil && last != nil {
		gap := math.Hypot(last.X-first.X, last.Y-first.Y)
		f[6] = 1 - clamp(gap/(bboxDiag+1))
	}
	if segments > 1 {
		f[7] = float64(corners) / float64(segments)
		f[8] = clamp(turnSum / float64(segments) / math.Pi)
	}
	centroidX := sumX / float64(totalPoints)
	centroidY := sumY / float64(totalPoints)
	offX := centroidX - (minX + bboxW/2)
	offY := centroidY - (minY + bboxH/2)
	f[9] = clamp(math.Hypot(offX, offY) / (bboxDiag + 1))
	f[10] = clamp(float64(totalPoints) / (ink + 1))
	f[11] = clamp(float64(data.DurationMS) / 10000)

	return f
}

func angleBetween(ax, ay, bx, by float64) float64 {
	return math.Atan2(ax*by-ay*bx, ax*bx+ay*by)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
