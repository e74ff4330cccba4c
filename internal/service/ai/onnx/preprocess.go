package onnx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"camnet/internal/service/ai"

	"github.com/nfnt/resize"
)

// decode turns an encoded frame into an image.
func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// tensorize resizes img to the kernel size and writes it into dst as a
// planar NCHW float32 tensor.
func tensorize(img image.Image, k *ai.Kernel, dst []float32) error {
	width, height := k.Width, k.Height
	plane := width * height
	if len(dst) != 3*plane {
		return fmt.Errorf("input tensor holds %d values, kernel %s needs %d", len(dst), k.Name, 3*plane)
	}

	resized := resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	bounds := resized.Bounds()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			channels := [3]float64{float64(b >> 8), float64(g >> 8), float64(r >> 8)}
			if k.SwapRB {
				channels[0], channels[2] = channels[2], channels[0]
			}

			i := y*width + x
			for c := 0; c < 3; c++ {
				dst[c*plane+i] = float32((channels[c] - k.Mean[c]) * k.Scale)
			}
		}
	}
	return nil
}
