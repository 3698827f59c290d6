package analysis

import (
	"fmt"
	"math"
)

// Eye is a detected eye position in camera pixels.
type Eye struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	interocularMM = 67.0
	typicalViewMM = 500.0
	minEstimateMM = 200.0
	maxEstimateMM = 1000.0
	minAcceptedMM = 300.0
	maxAcceptedMM = 700.0
)

// EstimateDistance approximates the eye-screen distance in millimetres from
// the pixel distance between both eyes, clamped to 200-1000 mm. ok is false
// when either eye is missing or both coincide.
func EstimateDistance(left, right *Eye) (mm float64, ok bool) {
	if left == nil || right == nil {
		return 0, false
	}
	pixels := math.Hypot(right.X-left.X, right.Y-left.Y)
	if pixels == 0 {
		return 0, false
	}
	estimate := typicalViewMM * (interocularMM / pixels)
	return math.Max(minEstimateMM, math.Min(maxEstimateMM, estimate)), true
}

// DistanceAcceptable reports whether mm lies within 300-700 mm.
func DistanceAcceptable(mm float64, ok bool) bool {
	return ok && mm >= minAcceptedMM && mm <= maxAcceptedMM
}

// DistanceMessage tells the patient whether to move.
func DistanceMessage(mm float64, ok bool) string {
	if !ok {
		return "Distance not detectable"
	}
	cm := math.Round(mm) / 10
	switch {
	case mm < minAcceptedMM:
		return fmt.Sprintf("Too close (%.1fcm): move back", cm)
	case mm > maxAcceptedMM:
		return fmt.Sprintf("Too far (%.1fcm): move closer", cm)
	default:
		return fmt.Sprintf("Distance acceptable (%.1fcm)", cm)
	}
}
