package ocr

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// sharpenKernel is a 3x3 row-major kernel. The centre weight 3 minus the four
// 0.5 neighbours sums to 1 so flat regions keep their brightness.
var sharpenKernel = [9]float64{
	0, -0.5, 0,
	-0.5, 3, -0.5,
	0, -0.5, 0,
}

// LoadImage decodes a screenshot from disk. Any failure is returned as *DecodeError.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// Sharpen applies the sharpening kernel to the R, G and B channels of every
// interior pixel. Border pixels and alpha are copied unchanged. The source is
// never modified; the result always has its origin at (0,0).
func Sharpen(img image.Image) *image.NRGBA {
	src := imaging.Clone(img)
	out := imaging.Clone(src)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w < 3 || h < 3 {
		return out
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var r, g, b float64
			k := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					i := (y+ky)*src.Stride + (x+kx)*4
					wt := sharpenKernel[k]
					r += float64(src.Pix[i]) * wt
					g += float64(src.Pix[i+1]) * wt
					b += float64(src.Pix[i+2]) * wt
					k++
				}
			}
			o := y*out.Stride + x*4
			out.Pix[o] = clampChannel(r)
			out.Pix[o+1] = clampChannel(g)
			out.Pix[o+2] = clampChannel(b)
		}
	}
	return out
}

// SharpenN runs Sharpen n times, feeding each pass its own output.
func SharpenN(img image.Image, n int) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 0; i < n; i++ {
		out = Sharpen(out)
	}
	return out
}

// EncodePNG serializes img as PNG for the recognizer.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// clampChannel clamps to [0,255] and rounds half to even.
func clampChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.RoundToEven(v))
}
