// Package detect locates regions of interest in a frame by color signature:
// tolerance-band pixel classification, parallel scanning, and marker
// estimation with confidence scoring.
package detect

// Target is a color with a symmetric per-channel acceptance band.
// A channel value c matches when it falls within [c-Tolerance, c+Tolerance]
// clamped to [0, 255]. Alpha is ignored.
type Target struct {
	R         uint8 `json:"r"`
	G         uint8 `json:"g"`
	B         uint8 `json:"b"`
	Tolerance uint8 `json:"tolerance"`
}

// Matches reports whether the pixel channels fall within the target band.
func (t Target) Matches(r, g, b uint8) bool {
	return inBand(r, t.R, t.Tolerance) && inBand(g, t.G, t.Tolerance) && inBand(b, t.B, t.Tolerance)
}

func inBand(value, center, tol uint8) bool {
	lo := int(center) - int(tol)
	if lo < 0 {
		lo = 0
	}
	hi := int(center) + int(tol)
	if hi > 255 {
		hi = 255
	}
	v := int(value)
	return v >= lo && v <= hi
}
