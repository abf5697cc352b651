package opengl

import (
	"image"
	"math/bits"
	"path/filepath"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/pkg/errors"

	"meshview/core"
	"meshview/gpu"
	"meshview/material"
)

// Texture is an immutable RGBA8 2D texture with a full mip chain. It serves as
// the material of mesh parts.
type Texture struct {
	id            uint32
	width, height int
}

// NewTexture uploads img. The first row of img is the bottom of the texture.
func NewTexture(img *image.NRGBA) (*Texture, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("texture has no pixels")
	}

	var id uint32
	gl.CreateTextures(gl.TEXTURE_2D, 1, &id)
	if id == 0 {
		return nil, errors.New("failed to create texture")
	}
	gl.TextureStorage2D(id, mipLevels(w, h), gl.RGBA8, int32(w), int32(h))
	gl.TextureParameteri(id, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TextureParameteri(id, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TextureParameteri(id, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TextureParameteri(id, gl.TEXTURE_MAG_FILTER, gl.LINEAR)

	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TextureSubImage2D(id, 0, 0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.GenerateTextureMipmap(id)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return nil, errors.Wrapf(GLError(code), "upload %dx%d texture", w, h)
	}
	return &Texture{id: id, width: w, height: h}, nil
}

// Bind attaches the texture to texture unit slot.
func (t *Texture) Bind(slot uint32) {
	gl.BindTextureUnit(slot, t.id)
}

// Release deletes the GL texture. Further Binds are invalid.
func (t *Texture) Release() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}

func (t *Texture) Size() (int, int) { return t.width, t.height }

// mipLevels is the length of the full mip chain of a w x h image.
func mipLevels(w, h int) int32 {
	return int32(bits.Len(uint(max(w, h))))
}

// TextureFactory creates the texture of a material description, reading
// diffuse maps relative to dir. Materials without a diffuse map get a 1x1
// texture of their diffuse colour.
func TextureFactory(dir string) material.Factory {
	return func(desc core.MaterialDesc) (gpu.Material, error) {
		var img *image.NRGBA
		if desc.DiffuseMap == "" {
			img = material.SolidImage(desc.Diffuse)
		} else {
			var err error
			img, err = material.LoadImage(filepath.Join(dir, desc.DiffuseMap))
			if err != nil {
				return nil, err
			}
		}
		return NewTexture(img)
	}
}
