package gpu

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"go.uber.org/zap"

	"github.com/junsooki/LaserField/internal/render"
)

// Device is the GL implementation of render.Device.
type Device struct {
	count  int
	xy     *PointTexture
	rgb    *PointTexture
	target *Framebuffer
	vertex *Shader
	quad   *Quad
	log    *zap.Logger
}

var _ render.Device = (*Device)(nil)

// NewDevice allocates the point targets for count points, compiles the fixed
// vertex stage and uploads the quad. It fails with ErrFramebufferIncomplete
// if the targets cannot be rendered to.
func NewDevice(count int, logger *zap.Logger) (*Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Device{
		count: count,
		xy:    NewPointTexture(2, gl.RG32F, count),
		rgb:   NewPointTexture(3, gl.RGB32F, count),
		log:   logger.With(zap.String("component", "gpu")),
	}
	d.target = NewFramebuffer(d.xy, d.rgb)
	if !d.target.Complete() {
		d.Release()
		return nil, ErrFramebufferIncomplete
	}

	d.vertex = NewShader(gl.VERTEX_SHADER)
	if err := d.vertex.Compile(vertexSource); err != nil {
		d.Release()
		return nil, err
	}

	d.quad = NewQuad(count)

	gl.Enable(gl.CULL_FACE)
	gl.Viewport(0, 0, int32(count), 1)

	d.log.Debug("point targets ready", zap.Int("points", count))
	return d, nil
}

// Build compiles source as the fragment stage and links it.
func (d *Device) Build(source string) (render.Program, error) {
	fragment := NewShader(gl.FRAGMENT_SHADER)
	if err := fragment.Compile(source); err != nil {
		fragment.Release()
		return nil, err
	}

	p := NewProgram(d.vertex, fragment)
	if err := p.Link(); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// Draw runs p over the target and reads both attachments back.
func (d *Device) Draw(p render.Program) ([]float32, []float32, error) {
	program, ok := p.(*Program)
	if !ok || !program.Linked() {
		return nil, nil, errors.New("gpu: draw needs a linked gpu.Program")
	}

	program.Use()
	d.target.Bind()
	d.quad.Render()

	xy := d.xy.ReadPixels(gl.RG)
	rgb := d.rgb.ReadPixels(gl.RGB)

	if err := checkError(); err != nil {
		return nil, nil, fmt.Errorf("draw %d points: %w", d.count, err)
	}
	return xy, rgb, nil
}

// Release frees every GL object owned by the device, in reverse order of
// creation.
func (d *Device) Release() {
	if d.quad != nil {
		d.quad.Release()
	}
	if d.vertex != nil {
		d.vertex.Release()
	}
	if d.target != nil {
		d.target.Release()
	}
	d.rgb.Release()
	d.xy.Release()
}
