// Package loader turns Wavefront OBJ/MTL files into upload-ready mesh data.
package loader

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"meshview/core"
)

// Result is a decoded mesh together with the material library it references.
type Result struct {
	Mesh    core.MeshData
	Library core.MaterialLib
}

// noMaterial is the name the OBJ decoder gives faces that precede any usemtl.
const noMaterial = "internal default"

// LoadOBJ decodes the OBJ file at objPath. When mtlPath is empty the mtllib
// named by the OBJ file is read from the same directory.
func LoadOBJ(objPath, mtlPath string) (*Result, error) {
	dec, err := obj.Decode(objPath, mtlPath)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", objPath)
	}
	libName := dec.Matlib
	if libName == "" && mtlPath != "" {
		libName = filepath.Base(mtlPath)
	}
	if mtlPath == "" && dec.Matlib != "" {
		mtlPath = filepath.Join(filepath.Dir(objPath), dec.Matlib)
	}

	var declared map[string]bool
	if mtlPath != "" {
		data, err := os.ReadFile(mtlPath)
		if err != nil {
			return nil, errors.Wrapf(err, "material library %q", libName)
		}
		declared = declaredMaterials(data)
	}
	return convert(dec, libName, declared)
}

// DecodeOBJ decodes an OBJ stream and its material library. libName is used
// as the library name when the OBJ data has no mtllib statement.
func DecodeOBJ(objData, mtlData io.Reader, libName string) (*Result, error) {
	mtl, err := io.ReadAll(mtlData)
	if err != nil {
		return nil, errors.Wrap(err, "read material library")
	}
	dec, err := obj.DecodeReader(objData, bytes.NewReader(mtl))
	if err != nil {
		return nil, errors.Wrap(err, "decode obj")
	}
	if dec.Matlib != "" {
		libName = dec.Matlib
	}
	return convert(dec, libName, declaredMaterials(mtl))
}

// declaredMaterials returns the names of the newmtl statements in an MTL file.
// The decoder also creates entries for names that are only used, so this is
// the only record of what the library really defines.
func declaredMaterials(mtl []byte) map[string]bool {
	names := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(mtl))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "newmtl" {
			names[fields[1]] = true
		}
	}
	return names
}

type vertexKey struct {
	pos, uv, normal int
}

type meshBuilder struct {
	dec      *obj.Decoder
	vertices []core.Vertex
	lookup   map[vertexKey]uint32
}

func convert(dec *obj.Decoder, libName string, declared map[string]bool) (*Result, error) {
	for _, w := range dec.Warnings {
		if strings.Contains(w, "material file") {
			return nil, errors.Errorf("material library %q: %s", libName, w)
		}
		slog.Warn("obj decoder", "warning", w)
	}

	b := &meshBuilder{dec: dec, lookup: make(map[vertexKey]uint32)}
	res := &Result{Library: core.MaterialLib{Name: libName}}
	var used []string
	seen := make(map[string]bool)
	flat := 0 // faces given flat normals, used to keep their vertices apart

	for _, o := range dec.Objects {
		groups := make(map[string]int) // material name -> part index
		for fi, f := range o.Faces {
			if f.Material == "" || f.Material == noMaterial {
				return nil, errors.Errorf("object %q face %d has no material (no usemtl before it)", o.Name, fi)
			}
			if len(f.Vertices) < 3 {
				slog.Warn("skipping degenerate face", "object", o.Name, "face", fi, "vertices", len(f.Vertices))
				continue
			}
			pi, ok := groups[f.Material]
			if !ok {
				pi = len(res.Mesh.Parts)
				groups[f.Material] = pi
				res.Mesh.Parts = append(res.Mesh.Parts, core.PartIndices{
					Name:     o.Name,
					Material: res.Library.Key(f.Material),
				})
			}
			if !seen[f.Material] {
				seen[f.Material] = true
				used = append(used, f.Material)
			}

			var faceNormal *mgl32.Vec3
			if !b.hasNormals(f) {
				n, err := b.flatNormal(f)
				if err != nil {
					return nil, errors.Wrapf(err, "object %q face %d", o.Name, fi)
				}
				faceNormal = &n
				flat++
			}

			part := &res.Mesh.Parts[pi]
			for i := 2; i < len(f.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					idx, err := b.vertex(f, corner, faceNormal, flat)
					if err != nil {
						return nil, errors.Wrapf(err, "object %q face %d", o.Name, fi)
					}
					part.Indices = append(part.Indices, idx)
				}
			}
		}
	}
	res.Mesh.Vertices = b.vertices

	for _, name := range used {
		m := dec.Materials[name]
		if m == nil || !declared[name] {
			return nil, errors.Errorf("material %q is not defined in %q", name, libName)
		}
		if m.Name != name {
			// The decoder replaces every material with its gray default when
			// the library fails to parse.
			return nil, errors.Errorf("material library %q could not be parsed", libName)
		}
		res.Library.Materials = append(res.Library.Materials, describe(name, m))
	}
	for _, name := range slices.Sorted(maps.Keys(declared)) {
		if seen[name] {
			continue
		}
		if m := dec.Materials[name]; m != nil && m.Name == name {
			res.Library.Materials = append(res.Library.Materials, describe(name, m))
		}
	}

	slog.Info("obj decoded", "objects", len(dec.Objects), "parts", len(res.Mesh.Parts),
		"vertices", len(res.Mesh.Vertices), "indices", res.Mesh.IndexCount(), "library", libName)
	return res, nil
}

func describe(name string, m *obj.Material) core.MaterialDesc {
	return core.MaterialDesc{
		Name:       name,
		DiffuseMap: m.MapKd,
		Diffuse:    [3]float32{m.Diffuse.R, m.Diffuse.G, m.Diffuse.B},
	}
}

func (b *meshBuilder) hasNormals(f obj.Face) bool {
	if len(f.Normals) != len(f.Vertices) {
		return false
	}
	for _, n := range f.Normals {
		if _, ok := component(b.dec.Normals, n, 3); !ok {
			return false
		}
	}
	return true
}

func (b *meshBuilder) position(idx int) (mgl32.Vec3, error) {
	p, ok := component(b.dec.Vertices, idx, 3)
	if !ok {
		return mgl32.Vec3{}, errors.Errorf("position index %d out of range", idx)
	}
	return mgl32.Vec3{p[0], p[1], p[2]}, nil
}

func (b *meshBuilder) flatNormal(f obj.Face) (mgl32.Vec3, error) {
	var p [3]mgl32.Vec3
	for i := range p {
		v, err := b.position(f.Vertices[i])
		if err != nil {
			return mgl32.Vec3{}, err
		}
		p[i] = v
	}
	n := p[1].Sub(p[0]).Cross(p[2].Sub(p[0]))
	if n.Len() == 0 {
		return mgl32.Vec3{}, nil
	}
	return n.Normalize(), nil
}

// vertex returns the index of the corner's vertex, adding it on first use.
// Corners sharing position, uv and normal indices share a vertex; corners of
// flat-shaded faces are only shared within their face.
func (b *meshBuilder) vertex(f obj.Face, corner int, faceNormal *mgl32.Vec3, flatID int) (uint32, error) {
	k := vertexKey{pos: f.Vertices[corner], uv: -1, normal: -1}
	if corner < len(f.Uvs) {
		if _, ok := component(b.dec.Uvs, f.Uvs[corner], 2); ok {
			k.uv = f.Uvs[corner]
		}
	}
	if faceNormal != nil {
		k.normal = -1 - flatID
	} else {
		k.normal = f.Normals[corner]
	}
	if idx, ok := b.lookup[k]; ok {
		return idx, nil
	}

	pos, err := b.position(k.pos)
	if err != nil {
		return 0, err
	}
	v := core.Vertex{Position: pos}
	if k.uv >= 0 {
		uv, _ := component(b.dec.Uvs, k.uv, 2)
		v.TexCoord = mgl32.Vec2{uv[0], uv[1]}
	}
	if faceNormal != nil {
		v.Normal = *faceNormal
	} else {
		n, _ := component(b.dec.Normals, k.normal, 3)
		v.Normal = mgl32.Vec3{n[0], n[1], n[2]}
	}

	idx := uint32(len(b.vertices))
	b.vertices = append(b.vertices, v)
	b.lookup[k] = idx
	return idx, nil
}

// component returns the n floats of element idx of a flat attribute array.
func component(arr []float32, idx, n int) ([]float32, bool) {
	if idx < 0 || (idx+1)*n > len(arr) {
		return nil, false
	}
	return arr[idx*n : (idx+1)*n], true
}
