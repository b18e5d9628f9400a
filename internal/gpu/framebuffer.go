package gpu

import (
	"github.com/go-gl/gl/v3.3-core/gl"
)

// Framebuffer binds point textures to consecutive color attachments.
type Framebuffer struct {
	id uint32
}

// NewFramebuffer creates a framebuffer with textures[i] on
// GL_COLOR_ATTACHMENT0+i and enables all of them as draw buffers.
func NewFramebuffer(textures ...*PointTexture) *Framebuffer {
	f := &Framebuffer{}
	gl.GenFramebuffers(1, &f.id)
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.id)

	drawBuffers := make([]uint32, len(textures))
	for i, t := range textures {
		gl.FramebufferTexture(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(i), t.id, 0)
		drawBuffers[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
	}
	if len(drawBuffers) > 0 {
		gl.DrawBuffers(int32(len(drawBuffers)), &drawBuffers[0])
	}
	return f
}

// Bind makes f the draw framebuffer.
func (f *Framebuffer) Bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, f.id)
}

// Complete reports whether every attachment is bound and renderable.
func (f *Framebuffer) Complete() bool {
	f.Bind()
	return gl.CheckFramebufferStatus(gl.FRAMEBUFFER) == gl.FRAMEBUFFER_COMPLETE
}

// Release deletes the framebuffer.
func (f *Framebuffer) Release() {
	if f.id != 0 {
		gl.DeleteFramebuffers(1, &f.id)
		f.id = 0
	}
}
