package render

// QuadPositions is the clip-space triangle strip covering the 1×N target.
var QuadPositions = [4][2]float32{
	{-1, 1},
	{-1, -1},
	{1, 1},
	{1, -1},
}

// QuadOffsets returns the per-vertex offset attribute for count points.
// Interpolated across the strip it takes the value i at the center of the
// i-th pixel, so the fragment stage runs exactly once per index in [0, count).
func QuadOffsets(count int) [4]float32 {
	end := float32(count) - 0.5
	return [4]float32{-0.5, -0.5, end, end}
}
