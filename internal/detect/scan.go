package detect

import (
	"runtime"
	"sync"

	"github.com/agentsight/percept/internal/frame"
)

// Point is a matching pixel position in frame coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Scan returns every pixel in the frame that matches the target band.
// The buffer is partitioned by rows across workers; results are always
// in row-major order regardless of worker count.
func Scan(f *frame.Frame, target Target) ([]Point, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Width == 0 || f.Height == 0 {
		return nil, nil
	}

	workers := runtime.NumCPU()
	if f.PixelCount() < SmallBufferPixels {
		workers = 1
	}
	if workers > f.Height {
		workers = f.Height
	}

	parts := make([][]Point, workers)
	rowsPer := f.Height / workers
	extra := f.Height % workers

	var wg sync.WaitGroup
	start := 0
	for i := 0; i < workers; i++ {
		rows := rowsPer
		if i < extra {
			rows++
		}
		end := start + rows

		wg.Add(1)
		go func(slot, yStart, yEnd int) {
			defer wg.Done()
			parts[slot] = scanRows(f, target, yStart, yEnd)
		}(i, start, end)

		start = end
	}
	wg.Wait()

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	matches := make([]Point, 0, total)
	for _, p := range parts {
		matches = append(matches, p...)
	}
	return matches, nil
}

func scanRows(f *frame.Frame, target Target, yStart, yEnd int) []Point {
	var matches []Point
	for y := yStart; y < yEnd; y++ {
		base := y * f.Width * 4
		for x := 0; x < f.Width; x++ {
			idx := base + x*4
			if target.Matches(f.Pix[idx], f.Pix[idx+1], f.Pix[idx+2]) {
				matches = append(matches, Point{X: x, Y: y})
			}
		}
	}
	return matches
}
