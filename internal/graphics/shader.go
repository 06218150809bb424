package graphics

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Stage is one shader stage's GLSL source.
type Stage struct {
	Type   uint32 // gl.VERTEX_SHADER, gl.FRAGMENT_SHADER, ...
	Source string
}

// Shader is a linked program with a cache of uniform locations.
type Shader struct {
	ID       uint32
	uniforms map[string]int32
}

// NewShader links a vertex + fragment program.
func NewShader(vertexSrc, fragmentSrc string) (*Shader, error) {
	return NewProgram(
		Stage{Type: gl.VERTEX_SHADER, Source: vertexSrc},
		Stage{Type: gl.FRAGMENT_SHADER, Source: fragmentSrc},
	)
}

// NewProgram compiles every stage and links them. Compiled stage objects
// are deleted whether or not linking succeeds.
func NewProgram(stages ...Stage) (*Shader, error) {
	ids := make([]uint32, 0, len(stages))
	defer func() {
		for _, id := range ids {
			gl.DeleteShader(id)
		}
	}()
	for _, st := range stages {
		id, err := compileStage(st)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	program := gl.CreateProgram()
	for _, id := range ids {
		gl.AttachShader(program, id)
	}
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(program, gl.GetProgramiv, gl.GetProgramInfoLog)
		gl.DeleteProgram(program)
		return nil, fmt.Errorf("link program: %s", msg)
	}
	return &Shader{ID: program, uniforms: make(map[string]int32)}, nil
}

func compileStage(st Stage) (uint32, error) {
	id := gl.CreateShader(st.Type)
	src, free := gl.Strs(st.Source + "\x00")
	gl.ShaderSource(id, 1, src, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		msg := infoLog(id, gl.GetShaderiv, gl.GetShaderInfoLog)
		gl.DeleteShader(id)
		return 0, fmt.Errorf("compile %s: %s", stageName(st.Type), msg)
	}
	return id, nil
}

func infoLog(id uint32,
	param func(uint32, uint32, *int32),
	read func(uint32, int32, *int32, *uint8)) string {
	var n int32
	param(id, gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return "no info log"
	}
	buf := strings.Repeat("\x00", int(n+1))
	read(id, n, nil, gl.Str(buf))
	return strings.TrimRight(buf, "\x00\n")
}

func stageName(t uint32) string {
	switch t {
	case gl.VERTEX_SHADER:
		return "vertex shader"
	case gl.FRAGMENT_SHADER:
		return "fragment shader"
	case gl.COMPUTE_SHADER:
		return "compute shader"
	}
	return fmt.Sprintf("shader stage 0x%x", t)
}

// Use activates the shader program
func (s *Shader) Use() { gl.UseProgram(s.ID) }

// Delete releases the program.
func (s *Shader) Delete() { gl.DeleteProgram(s.ID) }

// location returns the cached uniform location; -1 (unused uniform) is
// cached too, and GL ignores writes to it.
func (s *Shader) location(name string) int32 {
	loc, ok := s.uniforms[name]
	if !ok {
		loc = gl.GetUniformLocation(s.ID, gl.Str(name+"\x00"))
		s.uniforms[name] = loc
	}
	return loc
}

func (s *Shader) SetBool(name string, value bool) {
	var v int32
	if value {
		v = 1
	}
	gl.Uniform1i(s.location(name), v)
}

func (s *Shader) SetFloat(name string, value float32) {
	gl.Uniform1f(s.location(name), value)
}

func (s *Shader) SetVector3(name string, v mgl32.Vec3) {
	gl.Uniform3fv(s.location(name), 1, &v[0])
}

func (s *Shader) SetMatrix4(name string, m mgl32.Mat4) {
	gl.UniformMatrix4fv(s.location(name), 1, false, &m[0])
}
