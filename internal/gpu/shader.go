package gpu

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"
)

// vertexSource is the fixed vertex stage. It forwards the per-vertex offset,
// shifted by the running base, to the fragment stage as the point index.
const vertexSource = `#version 330
layout(location = 0) in vec2 aPosition;
layout(location = 1) in float aOffset;
out float index;
uniform uint base;
void main() {
	gl_Position = vec4(aPosition, 0, 1);
	index = float(base) + aOffset;
}
`

// Shader is a single compiled stage.
type Shader struct {
	id   uint32
	kind uint32
}

// NewShader creates an empty shader object of the given kind
// (gl.VERTEX_SHADER or gl.FRAGMENT_SHADER).
func NewShader(kind uint32) *Shader {
	return &Shader{id: gl.CreateShader(kind), kind: kind}
}

// Compile uploads and compiles source. The returned error wraps ErrCompile
// and carries the info log.
func (s *Shader) Compile(source string) error {
	csources, free := gl.Strs(cString(source))
	gl.ShaderSource(s.id, 1, csources, nil)
	free()
	gl.CompileShader(s.id)

	var status int32
	gl.GetShaderiv(s.id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(s.id, gl.INFO_LOG_LENGTH, &logLength)
		return fmt.Errorf("%w (%s stage): %s", ErrCompile, stageName(s.kind), infoLog(logLength, func(n int32, buf *uint8) {
			gl.GetShaderInfoLog(s.id, n, nil, buf)
		}))
	}
	return nil
}

// Release deletes the shader object.
func (s *Shader) Release() {
	if s.id != 0 {
		gl.DeleteShader(s.id)
		s.id = 0
	}
}

// cString terminates source with the NUL glShaderSource expects when no
// lengths are passed.
func cString(source string) string {
	if strings.HasSuffix(source, "\x00") {
		return source
	}
	return source + "\x00"
}

func stageName(kind uint32) string {
	if kind == gl.FRAGMENT_SHADER {
		return "fragment"
	}
	return "vertex"
}

func infoLog(length int32, read func(n int32, buf *uint8)) string {
	if length <= 0 {
		return "no info log"
	}
	buf := make([]uint8, length)
	read(length, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n ")
}
