// Package scale maps points between pixel coordinate spaces of
// different resolutions.
package scale

import (
	"math"

	apperrors "github.com/agentsight/percept/internal/errors"
)

// Map converts a point in a srcW x srcH space to the proportional point
// in a dstW x dstH space, rounding to the nearest pixel. All dimensions
// must be positive.
func Map(x, y, srcW, srcH, dstW, dstH int) (int, int, error) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, apperrors.Newf(apperrors.CodeInvalidDims, "invalid source dimensions: %dx%d", srcW, srcH)
	}
	if dstW <= 0 || dstH <= 0 {
		return 0, 0, apperrors.Newf(apperrors.CodeInvalidDims, "invalid destination dimensions: %dx%d", dstW, dstH)
	}

	mappedX := math.Round(float64(x) * float64(dstW) / float64(srcW))
	mappedY := math.Round(float64(y) * float64(dstH) / float64(srcH))
	return int(mappedX), int(mappedY), nil
}
