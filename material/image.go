package material

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes a texture image and returns it as NRGBA with the rows
// flipped, so the first row is the bottom of the picture as GL expects.
func DecodeImage(r io.Reader) (*image.NRGBA, string, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	flipVertical(dst)
	return dst, format, nil
}

// LoadImage opens and decodes the image file at path.
func LoadImage(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()

	img, _, err := DecodeImage(f)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", path)
	}
	return img, nil
}

// SolidImage returns a 1x1 opaque image of the given linear RGB colour, used
// for materials that have no diffuse map.
func SolidImage(rgb [3]float32) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{
		R: unitToByte(rgb[0]),
		G: unitToByte(rgb[1]),
		B: unitToByte(rgb[2]),
		A: 0xff,
	})
	return img
}

func unitToByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	}
	return uint8(v*255 + 0.5)
}

func flipVertical(img *image.NRGBA) {
	h := img.Rect.Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
