package gpu

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
)

var (
	// ErrContextCreation is returned when no GL context could be created.
	ErrContextCreation = errors.New("gpu: context creation failed")

	// ErrFunctionLoading is returned when the GL entry points cannot be loaded.
	ErrFunctionLoading = errors.New("gpu: loading GL functions failed")

	// ErrFramebufferIncomplete is returned when the point targets cannot be
	// bound as a complete framebuffer.
	ErrFramebufferIncomplete = errors.New("gpu: framebuffer is incomplete")

	// ErrCompile is returned when a shader stage fails to compile.
	ErrCompile = errors.New("gpu: shader compilation failed")

	// ErrLink is returned when a program fails to link.
	ErrLink = errors.New("gpu: program link failed")

	// ErrDriver is returned when glGetError reports an error after a draw.
	ErrDriver = errors.New("gpu: driver error")
)

func checkError() error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%w: 0x%04x", ErrDriver, code)
	}
	return nil
}
