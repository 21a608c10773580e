package quality

import (
	"fmt"
	"math"
	"strings"

	"drawing-trainer/core/models"
)

// Thresholds for quality checks
const (
	minStrokes          = 1
	maxStrokes          = 20
	minTotalPoints      = 5
	maxTotalPoints      = 2000
	minDurationMS       = 200
	maxDurationMS       = 60000
	minBoundingBoxRatio = 0.1
	passThreshold       = 50.0
)

// CheckResult is one heuristic check's contribution to the score
type CheckResult struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Message string  `json:"message"`
}

// Metrics summarizes the measured properties of a drawing
type Metrics struct {
	StrokeCount int     `json:"stroke_count"`
	TotalPoints int     `json:"total_points"`
	DurationMS  int64   `json:"duration_ms"`
	BBoxWidth   float64 `json:"bbox_width"`
	BBoxHeight  float64 `json:"bbox_height"`
	TotalInk    float64 `json:"total_ink"`
}

// Result is the full quality analysis for one drawing
type Result struct {
	Score          float64       `json:"score"`
	Passed         bool          `json:"passed"`
	Checks         []CheckResult `json:"checks"`
	Recommendation string        `json:"recommendation"`
	Metrics        Metrics       `json:"metrics"`
}

// scorer holds the derived stroke metrics the checks evaluate
type scorer struct {
	data         models.StrokeData
	canvasWidth  float64
	canvasHeight float64
	totalPoints  int
	bboxWidth    float64
	bboxHeight   float64
	totalInk     float64
}

// ScoreDrawing analyzes stroke data and computes a 0-100 quality score.
// Pure function: suitable for ingestion-side scoring; training jobs only
// ever read the precomputed result.
func ScoreDrawing(data models.StrokeData) Result {
	s := newScorer(data)

	weighted := []struct {
		name   string
		weight float64
		check  func() (float64, string)
	}{
		{"stroke_count", 1.0, s.checkStrokeCount},
		{"point_count", 1.0, s.checkPointCount},
		{"duration", 0.5, s.checkDuration},
		{"bounding_box", 1.5, s.checkBoundingBox},
		{"ink_coverage", 1.0, s.checkInkCoverage},
		{"stroke_quality", 1.0, s.checkStrokeQuality},
	}

	var totalWeight, weightedSum float64
	checks := make([]CheckResult, 0, len(weighted))
	for _, w := range weighted {
		score, message := w.check()
		totalWeight += w.weight
		weightedSum += w.weight * score
		checks = append(checks, CheckResult{
			Name:    w.name,
			Score:   round1(score * 100),
			Message: message,
		})
	}

	// Thresholds compare the raw score; rounding is display-only
	rawScore := weightedSum / totalWeight * 100

	var recommendation string
	switch {
	case rawScore >= 70:
		recommendation = "Include in training"
	case rawScore >= passThreshold:
		recommendation = "Review manually"
	default:
		recommendation = "Exclude from training"
	}

	return Result{
		Score:          round1(rawScore),
		Passed:         rawScore >= passThreshold,
		Checks:         checks,
		Recommendation: recommendation,
		Metrics: Metrics{
			StrokeCount: len(s.data.Strokes),
			TotalPoints: s.totalPoints,
			DurationMS:  s.data.DurationMS,
			BBoxWidth:   round1(s.bboxWidth),
			BBoxHeight:  round1(s.bboxHeight),
			TotalInk:    round1(s.totalInk),
		},
	}
}

func newScorer(data models.StrokeData) *scorer {
	s := &scorer{
		data:         data,
		canvasWidth:  data.Canvas.Width,
		canvasHeight: data.Canvas.Height,
	}
	if s.canvasWidth <= 0 {
		s.canvasWidth = 400
	}
	if s.canvasHeight <= 0 {
		s.canvasHeight = 400
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, stroke := range data.Strokes {
		s.totalPoints += len(stroke.Points)
		for i, p := range stroke.Points {
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
			minY = math.Min(minY, p.Y)
			maxY = math.Max(maxY, p.Y)
			if i > 0 {
				prev := stroke.Points[i-1]
				s.totalInk += math.Hypot(p.X-prev.X, p.Y-prev.Y)
			}
		}
	}
	if s.totalPoints > 0 {
		s.bboxWidth = math.Max(0, maxX-minX)
		s.bboxHeight = math.Max(0, maxY-minY)
	}
	return s
}

func (s *scorer) checkStrokeCount() (float64, string) {
	count := len(s.data.Strokes)
	if count == 0 {
		return 0.0, "No strokes"
	}
	if count < minStrokes {
		return 0.3, fmt.Sprintf("Too few strokes (%d)", count)
	}
	if count > maxStrokes {
		return 0.5, fmt.Sprintf("Too many strokes (%d)", count)
	}
	if count <= 10 {
		return 1.0, "Good stroke count"
	}
	return math.Max(0.5, 1.0-float64(count-10)*0.05), fmt.Sprintf("High stroke count (%d)", count)
}

func (s *scorer) checkPointCount() (float64, string) {
	if s.totalPoints < minTotalPoints {
		return 0.2, fmt.Sprintf("Too few points (%d)", s.totalPoints)
	}
	if s.totalPoints > maxTotalPoints {
		return 0.4, fmt.Sprintf("Too many points (%d)", s.totalPoints)
	}
	return 1.0, "Good point count"
}

func (s *scorer) checkDuration() (float64, string) {
	d := s.data.DurationMS
	if d < minDurationMS {
		return 0.3, fmt.Sprintf("Too fast (%dms)", d)
	}
	if d > maxDurationMS {
		return 0.7, fmt.Sprintf("Very slow (%dms)", d)
	}
	if d >= 500 && d <= 10000 {
		return 1.0, "Good duration"
	}
	if d < 500 {
		return 0.6, fmt.Sprintf("Quick drawing (%dms)", d)
	}
	return 0.8, fmt.Sprintf("Slow drawing (%dms)", d)
}

func (s *scorer) checkBoundingBox() (float64, string) {
	if s.totalPoints == 0 {
		return 0.0, "Empty drawing"
	}

	canvasArea := s.canvasWidth * s.canvasHeight
	bboxArea := s.bboxWidth * s.bboxHeight
	if canvasArea == 0 {
		return 0.5, "Invalid canvas"
	}

	ratio := bboxArea / canvasArea
	if ratio < minBoundingBoxRatio {
		return 0.4, fmt.Sprintf("Drawing too small (%.1f%% of canvas)", ratio*100)
	}
	if ratio > 0.9 {
		// Might be intentional
		return 0.9, "Drawing spans most of canvas"
	}

	if s.bboxWidth > 0 && s.bboxHeight > 0 {
		aspect := s.bboxWidth / s.bboxHeight
		if aspect < 0.1 || aspect > 10 {
			return 0.6, fmt.Sprintf("Extreme aspect ratio (%.2f)", aspect)
		}
	}

	return 1.0, "Good bounding box"
}

func (s *scorer) checkInkCoverage() (float64, string) {
	if s.totalPoints == 0 {
		return 0.0, "No ink"
	}

	canvasDiagonal := math.Hypot(s.canvasWidth, s.canvasHeight)
	if canvasDiagonal == 0 {
		return 0.5, "Invalid canvas"
	}

	coverage := s.totalInk / canvasDiagonal
	if coverage < 0.01 {
		return 0.3, fmt.Sprintf("Very little ink (%.3f)", coverage)
	}
	if coverage > 5.0 {
		return 0.4, fmt.Sprintf("Excessive ink (%.1fx diagonal)", coverage)
	}

	return 1.0, "Good ink coverage"
}

func (s *scorer) checkStrokeQuality() (float64, string) {
	if len(s.data.Strokes) == 0 {
		return 0.0, "No strokes"
	}

	var issues []string
	for i, stroke := range s.data.Strokes {
		if len(stroke.Points) < 2 {
			issues = append(issues, fmt.Sprintf("Stroke %d has only %d point(s)", i+1, len(stroke.Points)))
			continue
		}
		unique := make(map[[2]float64]struct{}, len(stroke.Points))
		for _, p := range stroke.Points {
			unique[[2]float64{p.X, p.Y}] = struct{}{}
		}
		if len(unique) == 1 {
			issues = append(issues, fmt.Sprintf("Stroke %d has no movement", i+1))
		}
	}

	if len(issues) > 3 {
		return 0.3, fmt.Sprintf("%d stroke issues", len(issues))
	}
	if len(issues) > 0 {
		if len(issues) > 2 {
			issues = issues[:2]
		}
		return 0.6, strings.Join(issues, "; ")
	}
	return 1.0, "Good stroke quality"
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
