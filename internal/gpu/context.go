package gpu

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Context is a hidden window holding a current OpenGL 3.3 core context.
type Context struct {
	window *glfw.Window
}

// CreateContext initializes GLFW and makes a hidden 1×1 window's context
// current on the calling thread. Must be called from the main thread.
func CreateContext() (*Context, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextCreation, err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(1, 1, "laserfield", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("%w: %w", ErrContextCreation, err)
	}
	window.MakeContextCurrent()

	return &Context{window: window}, nil
}

// LoadFunctions resolves the GL entry points for the current context.
func (c *Context) LoadFunctions() error {
	if err := gl.Init(); err != nil {
		return fmt.Errorf("%w: %w", ErrFunctionLoading, err)
	}
	return nil
}

// Versions returns the GL and GLSL version strings of the current context.
func (c *Context) Versions() (version, glsl string) {
	return gl.GoStr(gl.GetString(gl.VERSION)), gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))
}

// Destroy releases the window and terminates GLFW.
func (c *Context) Destroy() {
	if c.window != nil {
		c.window.Destroy()
		c.window = nil
	}
	glfw.Terminate()
}
