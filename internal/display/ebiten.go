package display

import (
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/junsooki/LaserField/internal/point"
)

// StrokeWidth is the width of a drawn laser stroke in pixels.
const StrokeWidth = 2

// EbitenDisplay renders the most recent frame using Ebitengine.
type EbitenDisplay struct {
	title string

	mu     sync.Mutex
	frame  []point.Point
	frames uint64
	closed bool

	segs []segment
}

var _ FrameSink = (*EbitenDisplay)(nil)

// NewEbitenDisplay creates an Ebitengine-based display.
func NewEbitenDisplay(title string) *EbitenDisplay {
	return &EbitenDisplay{title: title}
}

// SetFrame replaces the displayed frame. It is safe to call from any
// goroutine; the points are copied.
func (d *EbitenDisplay) SetFrame(frame point.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = append(d.frame[:0], frame.Points...)
	d.frames++
}

// Frames returns the number of frames received so far.
func (d *EbitenDisplay) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// Close makes Run return after the current tick.
func (d *EbitenDisplay) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Run starts the Ebitengine game loop. Must be called from the main goroutine.
func (d *EbitenDisplay) Run() error {
	ebiten.SetWindowSize(800, 800)
	ebiten.SetWindowTitle(d.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(d)
}

func (d *EbitenDisplay) Update() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ebiten.Termination
	}
	return nil
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	vp := newViewport(screen.Bounds().Dx(), screen.Bounds().Dy())
	d.mu.Lock()
	d.segs = segments(d.segs, d.frame, vp)
	d.mu.Unlock()

	for _, s := range d.segs {
		vector.StrokeLine(screen, s.x0, s.y0, s.x1, s.y1, StrokeWidth, s.clr, true)
	}
}

func (d *EbitenDisplay) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
