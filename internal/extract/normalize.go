package extract

import (
	"fmt"

	"github.com/jackzampolin/leaflet/internal/providers"
	"github.com/jackzampolin/leaflet/internal/types"
)

// NormalizationError reports a bounding box that could not be converted
// into canonical page-point space. Callers surface it as a warning and
// emit a nil bbox — never a plausible-looking but wrong coordinate.
type NormalizationError struct {
	Space  providers.CoordSpace
	Box    [4]float64
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize bbox %v from %s: %s", e.Box, e.Space, e.Reason)
}

// Fraction of the page dimension a coordinate may overshoot before the
// box is rejected instead of clamped.
const clampTolerance = 0.01

// NormalizeBBox converts a bounding box from the declared coordinate
// space into canonical page-point space (origin top-left). pageW/pageH
// are the page media box in points; captureDPI is the render resolution
// for pixel-space boxes.
func NormalizeBBox(box [4]float64, space providers.CoordSpace, pageW, pageH float64, captureDPI int) (*types.BBox, error) {
	if pageW <= 0 || pageH <= 0 {
		return nil, &NormalizationError{Space: space, Box: box, Reason: "page has no coordinate system"}
	}

	var out types.BBox
	switch space {
	case providers.CoordPagePoints:
		out = types.BBox{box[0], box[1], box[2], box[3]}

	case providers.CoordPDFBottomLeft:
		// Flip the vertical axis: the bottom edge becomes y1.
		out = types.BBox{box[0], pageH - box[3], box[2], pageH - box[1]}

	case providers.CoordNormalizedThousand:
		sx, sy := pageW/1000.0, pageH/1000.0
		out = types.BBox{box[0] * sx, box[1] * sy, box[2] * sx, box[3] * sy}

	case providers.CoordCapturePixels:
		if captureDPI <= 0 {
			return nil, &NormalizationError{Space: space, Box: box, Reason: "capture DPI unknown"}
		}
		s := 72.0 / float64(captureDPI)
		out = types.BBox{box[0] * s, box[1] * s, box[2] * s, box[3] * s}

	default:
		return nil, &NormalizationError{Space: space, Box: box, Reason: "unknown coordinate space"}
	}

	if out[0] > out[2] || out[1] > out[3] {
		return nil, &NormalizationError{Space: space, Box: box, Reason: "degenerate box after conversion"}
	}

	// Clamp minor overshoot; reject boxes substantially outside the page.
	tolW, tolH := pageW*clampTolerance, pageH*clampTolerance
	if out[0] < -tolW || out[1] < -tolH || out[2] > pageW+tolW || out[3] > pageH+tolH {
		return nil, &NormalizationError{Space: space, Box: box, Reason: "box outside page bounds"}
	}
	out[0] = clamp(out[0], 0, pageW)
	out[1] = clamp(out[1], 0, pageH)
	out[2] = clamp(out[2], 0, pageW)
	out[3] = clamp(out[3], 0, pageH)

	return &out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
