package gpu

import (
	"github.com/go-gl/gl/v3.3-core/gl"
)

// PointTexture is a 1×N float texture with a host-side copy of its pixels.
type PointTexture struct {
	id         uint32
	components int
	pixels     []float32
}

// NewPointTexture allocates a texture of count texels with the given
// component count and internal format (gl.RG32F, gl.RGB32F).
func NewPointTexture(components int, internalFormat int32, count int) *PointTexture {
	t := &PointTexture{
		components: components,
		pixels:     make([]float32, components*count),
	}

	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_1D, t.id)
	gl.TexImage1D(gl.TEXTURE_1D, 0, internalFormat, int32(count), 0, gl.RGB, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_1D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_1D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)

	return t
}

// ReadPixels copies the texture into the host buffer and returns it. The
// returned slice is overwritten by the next call.
func (t *PointTexture) ReadPixels(format uint32) []float32 {
	gl.BindTexture(gl.TEXTURE_1D, t.id)
	gl.GetTexImage(gl.TEXTURE_1D, 0, format, gl.FLOAT, gl.Ptr(t.pixels))
	return t.pixels
}

// Release deletes the texture.
func (t *PointTexture) Release() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}
