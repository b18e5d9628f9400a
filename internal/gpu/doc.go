// Package gpu implements render.Device on OpenGL 3.3 core.
//
// Points are computed by rasterizing a single strip into a 1×N framebuffer
// with two float color attachments: attachment 0 (RG32F) receives positions,
// attachment 1 (RGB32F) receives colors. Both are read back with
// glGetTexImage after every draw.
//
// All functions must be called from the goroutine that made the context
// current, locked to its OS thread.
package gpu
