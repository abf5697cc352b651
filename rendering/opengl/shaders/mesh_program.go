package shaders

import (
	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// Mesh vertex shader. Attribute locations match gpu.MeshLayout.
const meshVertexShader = `
#version 450 core

layout(location = 0) in vec3 position;
layout(location = 1) in vec2 tex_coord;
layout(location = 2) in vec3 normal;

uniform mat4 perspective_matrix;
uniform mat4 view_matrix;
uniform mat4 model_matrix;

out vec2 frag_tex_coord;
out vec3 frag_normal;

void main() {
    frag_tex_coord = tex_coord;
    frag_normal = mat3(model_matrix) * normal;
    gl_Position = perspective_matrix * view_matrix * model_matrix * vec4(position, 1.0);
}
`

// Mesh fragment shader: diffuse texture with a fixed directional light.
const meshFragmentShader = `
#version 450 core

in vec2 frag_tex_coord;
in vec3 frag_normal;

uniform sampler2D diffuse_map;

out vec4 out_color;

const vec3 light_dir = normalize(vec3(0.3, 1.0, 0.5));

void main() {
    vec4 albedo = texture(diffuse_map, frag_tex_coord);
    float lambert = 0.35 + 0.65 * max(dot(normalize(frag_normal), light_dir), 0.0);
    out_color = vec4(albedo.rgb * lambert, albedo.a);
}
`

// MeshProgram is the program that draws textured mesh parts.
type MeshProgram struct {
	id uint32

	perspective int32
	view        int32
	model       int32
	diffuse     int32
}

// NewMeshProgram builds the mesh program from the given shader files. Empty
// paths select the built-in sources.
func NewMeshProgram(vertPath, fragPath string) (*MeshProgram, error) {
	vertSrc, err := readSource(vertPath, meshVertexShader)
	if err != nil {
		return nil, err
	}
	fragSrc, err := readSource(fragPath, meshFragmentShader)
	if err != nil {
		return nil, err
	}
	id, err := buildProgram(vertSrc, fragSrc)
	if err != nil {
		return nil, errors.Wrap(err, "mesh program")
	}

	p := &MeshProgram{id: id}
	p.perspective = p.uniform("perspective_matrix")
	p.view = p.uniform("view_matrix")
	p.model = p.uniform("model_matrix")
	p.diffuse = p.uniform("diffuse_map")
	return p, nil
}

func (p *MeshProgram) uniform(name string) int32 {
	return gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
}

// Use makes the program current.
func (p *MeshProgram) Use() {
	gl.UseProgram(p.id)
}

// SetMatrices uploads the transform uniforms. The program must be current.
func (p *MeshProgram) SetMatrices(perspective, view, model mgl32.Mat4) {
	gl.UniformMatrix4fv(p.perspective, 1, false, &perspective[0])
	gl.UniformMatrix4fv(p.view, 1, false, &view[0])
	gl.UniformMatrix4fv(p.model, 1, false, &model[0])
}

// SetDiffuseUnit points the diffuse sampler at texture unit slot.
func (p *MeshProgram) SetDiffuseUnit(slot uint32) {
	gl.ProgramUniform1i(p.id, p.diffuse, int32(slot))
}

// Release deletes the program.
func (p *MeshProgram) Release() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}
