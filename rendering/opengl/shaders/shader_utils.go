package shaders

import (
	"fmt"
	"os"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/pkg/errors"
)

// compileShader compiles a single shader
func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)

	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetShaderInfoLog(shader, logLength, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", stageName(shaderType), gl.GoStr(&log[0]))
	}

	return shader, nil
}

// linkProgram links vertex and fragment shaders into a program. The shaders
// are deleted either way.
func linkProgram(vertShader, fragShader uint32) (uint32, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, vertShader)
	gl.AttachShader(program, fragShader)
	gl.LinkProgram(program)
	gl.DetachShader(program, vertShader)
	gl.DetachShader(program, fragShader)
	gl.DeleteShader(vertShader)
	gl.DeleteShader(fragShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetProgramInfoLog(program, logLength, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link failed: %s", gl.GoStr(&log[0]))
	}

	return program, nil
}

// buildProgram compiles and links a vertex/fragment pair.
func buildProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(vertSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	frag, err := compileShader(fragSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vert)
		return 0, err
	}
	return linkProgram(vert, frag)
}

// readSource returns the contents of path, or fallback when path is empty.
func readSource(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read shader")
	}
	return string(data), nil
}

func stageName(shaderType uint32) string {
	switch shaderType {
	case gl.VERTEX_SHADER:
		return "vertex"
	case gl.FRAGMENT_SHADER:
		return "fragment"
	}
	return "unknown"
}
