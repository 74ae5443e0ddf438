package embedding

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// CLIP vision preprocessing constants (per-channel mean and std over RGB).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// PreprocessImage decodes the image at path, resizes it to size x size with
// bilinear sampling, and returns normalized pixel values in NCHW layout as the
// CLIP vision encoder expects.
func PreprocessImage(path string, size int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("empty image: %s", path)
	}

	out := make([]float32, 3*size*size)
	plane := size * size
	for y := 0; y < size; y++ {
		srcY := (float64(y) + 0.5) * float64(srcH) / float64(size)
		for x := 0; x < size; x++ {
			srcX := (float64(x) + 0.5) * float64(srcW) / float64(size)
			r, g, b := bilinearSample(img, srcX, srcY)
			i := y*size + x
			out[i] = (r - clipMean[0]) / clipStd[0]
			out[plane+i] = (g - clipMean[1]) / clipStd[1]
			out[2*plane+i] = (b - clipMean[2]) / clipStd[2]
		}
	}
	return out, nil
}

// bilinearSample returns RGB in [0,1] at the fractional source position.
func bilinearSample(img image.Image, x, y float64) (float32, float32, float32) {
	bounds := img.Bounds()
	x0 := int(x - 0.5)
	y0 := int(y - 0.5)
	fx := float32(x - 0.5 - float64(x0))
	fy := float32(y - 0.5 - float64(y0))

	var r, g, b float32
	for dy := 0; dy <= 1; dy++ {
		for dx := 0; dx <= 1; dx++ {
			px := clampInt(x0+dx, bounds.Min.X, bounds.Max.X-1)
			py := clampInt(y0+dy, bounds.Min.Y, bounds.Max.Y-1)
			pr, pg, pb, _ := img.At(px, py).RGBA()
			wx := fx
			if dx == 0 {
				wx = 1 - fx
			}
			wy := fy
			if dy == 0 {
				wy = 1 - fy
			}
			w := wx * wy
			r += w * float32(pr) / 0xffff
			g += w * float32(pg) / 0xffff
			b += w * float32(pb) / 0xffff
		}
	}
	return r, g, b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
