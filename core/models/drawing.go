package models

// ShapeNames lists the trainable classes in label-index order
var ShapeNames = []string{"circle", "heart", "line", "square", "triangle"}

// ShapeIndex returns the class index for a shape name, defaulting to 0
func ShapeIndex(name string) int {
	for i, n := range ShapeNames {
		if n == name {
			return i
		}
	}
	return 0
}

// Drawing is a candidate record eligible for inclusion in a training run
type Drawing struct {
	ID             string
	StrokeDataPath string
	ShapeName      string
}

// Point is a single sampled position within a stroke
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Pressure  float64 `json:"pressure,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Stroke is one continuous pen movement
type Stroke struct {
	Points []Point `json:"points"`
	Color  string  `json:"color,omitempty"`
	Width  float64 `json:"width,omitempty"`
}

// Canvas describes the drawing surface dimensions
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StrokeData is the raw submitted drawing as stored in the drawings bucket
type StrokeData struct {
	Shape      string   `json:"shape,omitempty"`
	Canvas     Canvas   `json:"canvas"`
	Strokes    []Stroke `json:"strokes"`
	DurationMS int64    `json:"duration_ms"`
}
