// Package display puts software-rendered frames on screen through an
// OpenGL texture and a fullscreen quad.
package display

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"
)

// Display owns the GL objects used to present frames.
type Display struct {
	log *zap.Logger

	program uint32
	vao     uint32
	vbo     uint32
	texture uint32
	uScale  int32
	uFrame  int32

	texW, texH int
	clear      [3]float32
}

// New initializes OpenGL and the blit pipeline.
// Must be called after the GL context is created.
func New(log *zap.Logger) (*Display, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	d := &Display{log: log}

	var err error
	d.program, err = compileProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to create blit program: %w", err)
	}
	d.uScale = uniform(d.program, "uScale")
	d.uFrame = uniform(d.program, "uFrame")

	d.createQuad()

	gl.GenTextures(1, &d.texture)
	gl.BindTexture(gl.TEXTURE_2D, d.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.Disable(gl.DEPTH_TEST)
	return d, nil
}

// createQuad builds two triangles covering clip space. Image rows run top
// to bottom, so v is flipped.
func (d *Display) createQuad() {
	vertices := []float32{
		// pos      // uv
		-1, -1, 0, 1,
		1, -1, 1, 1,
		1, 1, 1, 0,
		-1, -1, 0, 1,
		1, 1, 1, 0,
		-1, 1, 0, 0,
	}

	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)

	gl.GenBuffers(1, &d.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, nil)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, unsafe.Pointer(uintptr(2*4)))
	gl.EnableVertexAttribArray(1)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

// SetClearColor sets the color around letterboxed frames.
func (d *Display) SetClearColor(r, g, b float64) {
	d.clear = [3]float32{float32(r), float32(g), float32(b)}
}

// Present uploads img and draws it into a viewport of the given size,
// keeping its aspect ratio.
func (d *Display) Present(img *image.RGBA, viewW, viewH int) {
	gl.Viewport(0, 0, int32(viewW), int32(viewH))
	gl.ClearColor(d.clear[0], d.clear[1], d.clear[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	if img == nil || viewW <= 0 || viewH <= 0 {
		return
	}

	size := img.Rect.Size()
	gl.BindTexture(gl.TEXTURE_2D, d.texture)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	if size.X != d.texW || size.Y != d.texH {
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(size.X), int32(size.Y), 0,
			gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
		d.texW, d.texH = size.X, size.Y
		d.log.Debug("frame texture resized", zap.Int("width", size.X), zap.Int("height", size.Y))
	} else {
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(size.X), int32(size.Y),
			gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	}
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)

	sx, sy := Fit(size.X, size.Y, viewW, viewH)

	gl.UseProgram(d.program)
	gl.Uniform2f(d.uScale, float32(sx), float32(sy))
	gl.Uniform1i(d.uFrame, 0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindVertexArray(d.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// Fit returns the clip-space scale that letterboxes an imgW x imgH frame
// inside a viewW x viewH viewport.
func Fit(imgW, imgH, viewW, viewH int) (sx, sy float64) {
	if imgW <= 0 || imgH <= 0 || viewW <= 0 || viewH <= 0 {
		return 1, 1
	}
	imgAspect := float64(imgW) / float64(imgH)
	viewAspect := float64(viewW) / float64(viewH)
	if imgAspect > viewAspect {
		return 1, viewAspect / imgAspect
	}
	return imgAspect / viewAspect, 1
}

// Close releases GL resources.
func (d *Display) Close() {
	d.log.Info("closing display")
	if d.texture != 0 {
		gl.DeleteTextures(1, &d.texture)
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
	}
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
	}
	if d.program != 0 {
		gl.DeleteProgram(d.program)
	}
}
