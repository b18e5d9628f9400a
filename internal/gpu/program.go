package gpu

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
)

// Program is a linked vertex+fragment pair. It owns its fragment stage; the
// vertex stage is shared and owned by the Device.
type Program struct {
	id       uint32
	vertex   *Shader
	fragment *Shader
	linked   bool

	baseLocation int32
	timeLocation int32
}

// NewProgram attaches both stages to a new program object.
func NewProgram(vertex, fragment *Shader) *Program {
	p := &Program{
		id:           gl.CreateProgram(),
		vertex:       vertex,
		fragment:     fragment,
		baseLocation: -1,
		timeLocation: -1,
	}
	gl.AttachShader(p.id, vertex.id)
	gl.AttachShader(p.id, fragment.id)
	return p
}

// Link links the program and resolves the uniform locations. Locations from
// an earlier link are not reused.
func (p *Program) Link() error {
	gl.LinkProgram(p.id)

	var status int32
	gl.GetProgramiv(p.id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(p.id, gl.INFO_LOG_LENGTH, &logLength)
		p.linked = false
		return fmt.Errorf("%w: %s", ErrLink, infoLog(logLength, func(n int32, buf *uint8) {
			gl.GetProgramInfoLog(p.id, n, nil, buf)
		}))
	}

	p.linked = true
	gl.UseProgram(p.id)
	p.baseLocation = gl.GetUniformLocation(p.id, gl.Str("base\x00"))
	p.timeLocation = gl.GetUniformLocation(p.id, gl.Str("time\x00"))
	return nil
}

// Linked reports whether the last Link succeeded.
func (p *Program) Linked() bool {
	return p.linked
}

// Use makes p the current program.
func (p *Program) Use() {
	gl.UseProgram(p.id)
}

// SetBase uploads the index base. A program whose stages do not reference
// base has location -1, which GL ignores.
func (p *Program) SetBase(base uint32) {
	gl.UseProgram(p.id)
	gl.Uniform1ui(p.baseLocation, base)
}

// SetTime uploads the elapsed time in seconds.
func (p *Program) SetTime(seconds float32) {
	gl.UseProgram(p.id)
	gl.Uniform1f(p.timeLocation, seconds)
}

// Release detaches both stages, deletes the program and its fragment stage.
func (p *Program) Release() {
	if p.id == 0 {
		return
	}
	gl.DetachShader(p.id, p.vertex.id)
	gl.DetachShader(p.id, p.fragment.id)
	gl.DeleteProgram(p.id)
	p.fragment.Release()
	p.id = 0
	p.linked = false
}
