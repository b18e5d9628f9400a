package etherdream

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/junsooki/LaserField/internal/dac"
	"github.com/junsooki/LaserField/internal/point"
)

func TestCoordinate(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		v, offset, scale float32
		want             int16
	}{
		{0, 0, 1, 0},
		{1, 0, 1, 32767},
		{-1, 0, 1, -32767},
		{0.5, 0, 1, 16383},
		{2, 0, 1, 32767},
		{-2, 0, 1, -32768},
		{0, 0.5, 1, 16383},
		{0.5, 0.5, 1, 32767},
		{1, 0, 0.5, 16383},
		{1, 0, -1, -32767},
		{float32(math.Inf(1)), 0, 1, 32767},
		{float32(math.Inf(-1)), 0, 1, -32768},
		{nan, 0, 1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Coordinate(tt.v, tt.offset, tt.scale), "v=%g offset=%g scale=%g", tt.v, tt.offset, tt.scale)
	}
}

func TestColor(t *testing.T) {
	tests := []struct {
		v    float32
		want uint16
	}{
		{0, 0},
		{1, 65535},
		{0.5, 32767},
		{-0.5, 0},
		{7, 65535},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Color(tt.v), "v=%g", tt.v)
	}
}

func TestCoordinateRoundTrip(t *testing.T) {
	for q := math.MinInt16; q <= math.MaxInt16; q++ {
		got := int(Coordinate(float32(q)/32767, 0, 1))
		if got < q-1 || got > q+1 {
			t.Fatalf("Coordinate(%d/32767) = %d", q, got)
		}
	}
}

func TestColorRoundTrip(t *testing.T) {
	for q := 0; q <= math.MaxUint16; q++ {
		got := int(Color(float32(q) / 65535))
		if got < q-1 || got > q+1 {
			t.Fatalf("Color(%d/65535) = %d", q, got)
		}
	}
}

func TestQuantize(t *testing.T) {
	tr := Transform{Scale: 1}
	got := tr.Quantize(nil, []point.Point{{X: 1, Y: -1, R: 1, G: 0.5, B: 2}})
	assert.Equal(t, []dac.Sample{{X: 32767, Y: -32767, R: 65535, G: 32767, B: 65535}}, got)

	buf := make([]dac.Sample, 4)
	got = tr.Quantize(buf, make([]point.Point, 2))
	assert.Len(t, got, 2)
	assert.Equal(t, &buf[0], &got[0])
}
