package render

import (
	"errors"
	"syscall/js"

	webgl "github.com/seqsense/webgl-go"
)

const (
	aVertexPosition = 0
	aVertexColor    = 1
)

// WebGL is a Target drawing to a canvas.
type WebGL struct {
	gl      *webgl.WebGL
	program webgl.Program
	posBuf  webgl.Buffer
	colBuf  webgl.Buffer
}

func NewWebGL(canvas js.Value, pointSize float32) (*WebGL, error) {
	gl, err := webgl.New(canvas)
	if err != nil {
		return nil, err
	}
	vs := gl.CreateShader(gl.VERTEX_SHADER)
	gl.ShaderSource(vs, vsSource)
	gl.CompileShader(vs)
	if !gl.GetShaderParameter(vs, gl.COMPILE_STATUS).(bool) {
		return nil, errors.New("compile failed (VERTEX_SHADER)")
	}
	fs := gl.CreateShader(gl.FRAGMENT_SHADER)
	gl.ShaderSource(fs, fsSource)
	gl.CompileShader(fs)
	if !gl.GetShaderParameter(fs, gl.COMPILE_STATUS).(bool) {
		return nil, errors.New("compile failed (FRAGMENT_SHADER)")
	}
	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.LinkProgram(program)
	if !gl.GetProgramParameter(program, gl.LINK_STATUS).(bool) {
		return nil, errors.New("link failed: " + gl.GetProgramInfoLog(program))
	}

	gl.UseProgram(program)
	gl.Uniform1f(gl.GetUniformLocation(program, "uPointSize"), pointSize)
	gl.EnableVertexAttribArray(aVertexPosition)
	gl.EnableVertexAttribArray(aVertexColor)
	gl.ClearColor(0.0, 0.0, 0.0, 1.0)
	gl.ClearDepth(1.0)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)

	return &WebGL{
		gl:      gl,
		program: program,
		posBuf:  gl.CreateBuffer(),
		colBuf:  gl.CreateBuffer(),
	}, nil
}

func (w *WebGL) Clear() {
	w.gl.Clear(w.gl.COLOR_BUFFER_BIT | w.gl.DEPTH_BUFFER_BIT)
}

func (w *WebGL) load(positions, colors []float32) {
	gl := w.gl
	gl.UseProgram(w.program)
	gl.BindBuffer(gl.ARRAY_BUFFER, w.posBuf)
	gl.BufferData(gl.ARRAY_BUFFER, webgl.Float32ArrayBuffer(positions), gl.STATIC_DRAW)
	gl.VertexAttribPointer(aVertexPosition, 3, gl.FLOAT, false, 3*4, 0)
	gl.BindBuffer(gl.ARRAY_BUFFER, w.colBuf)
	gl.BufferData(gl.ARRAY_BUFFER, webgl.Float32ArrayBuffer(colors), gl.STATIC_DRAW)
	gl.VertexAttribPointer(aVertexColor, 4, gl.FLOAT, false, 4*4, 0)
}

func (w *WebGL) DrawPoints(positions, colors []float32) error {
	w.load(positions, colors)
	w.gl.DrawArrays(w.gl.POINTS, 0, len(positions)/3)
	return w.gl.GetError()
}

func (w *WebGL) DrawLines(positions, colors []float32) error {
	w.load(positions, colors)
	w.gl.DrawArrays(w.gl.LINES, 0, len(positions)/3)
	return w.gl.GetError()
}
