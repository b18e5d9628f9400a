package gpu

import (
	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/junsooki/LaserField/internal/render"
)

const (
	positionAttribute = 0
	offsetAttribute   = 1
)

// Quad is the four-vertex strip that drives one fragment per point.
type Quad struct {
	vao uint32
	vbo [2]uint32
}

// NewQuad uploads render.QuadPositions and render.QuadOffsets(count).
func NewQuad(count int) *Quad {
	positions := render.QuadPositions
	offsets := render.QuadOffsets(count)

	q := &Quad{}
	gl.GenVertexArrays(1, &q.vao)
	gl.BindVertexArray(q.vao)

	gl.GenBuffers(int32(len(q.vbo)), &q.vbo[0])

	gl.BindBuffer(gl.ARRAY_BUFFER, q.vbo[0])
	gl.BufferData(gl.ARRAY_BUFFER, len(positions)*2*4, gl.Ptr(&positions[0][0]), gl.STATIC_DRAW)
	gl.VertexAttribPointer(positionAttribute, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(positionAttribute)

	gl.BindBuffer(gl.ARRAY_BUFFER, q.vbo[1])
	gl.BufferData(gl.ARRAY_BUFFER, len(offsets)*4, gl.Ptr(&offsets[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointer(offsetAttribute, 1, gl.FLOAT, false, 0, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(offsetAttribute)

	return q
}

// Render draws the strip.
func (q *Quad) Render() {
	gl.BindVertexArray(q.vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
}

// Release deletes the buffers and the vertex array.
func (q *Quad) Release() {
	if q.vao == 0 {
		return
	}
	gl.BindVertexArray(q.vao)
	gl.DisableVertexAttribArray(positionAttribute)
	gl.DisableVertexAttribArray(offsetAttribute)
	gl.DeleteBuffers(int32(len(q.vbo)), &q.vbo[0])
	gl.DeleteVertexArrays(1, &q.vao)
	q.vao = 0
}
