package omr

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Frame is the preprocessed answer area.
//
// Gray is the unblurred grayscale crop used for intensity sampling, Mask the
// binarized crop where ink is 255 and paper 0. Both start at (0,0); Origin is
// the page position of the crop's top-left corner.
type Frame struct {
	Gray   *image.Gray
	Mask   *image.Gray
	Origin image.Point
}

// Preprocess crops img to region, converts the crop to grayscale and
// binarizes it.
//
// The mask is produced by a Gaussian blur (Params.BlurKernel) followed by an
// inverted adaptive threshold: a pixel is foreground when it is darker than
// its Gaussian-weighted ThresholdBlock x ThresholdBlock neighbourhood mean
// minus ThresholdOffset. No morphological opening or closing is applied, so
// faint marks survive at the cost of a noisier mask.
func Preprocess(img image.Image, region Region, p Params) (*Frame, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if err := region.Within(img.Bounds()); err != nil {
		return nil, err
	}

	cropped := imaging.Crop(img, region.Rect())
	gray := grayFromRGBA(effect.GrayscaleWithWeights(cropped, 0.299, 0.587, 0.114))

	mask, err := binarize(gray, p)
	if err != nil {
		return nil, fmt.Errorf("failed to binarize answer region: %w", err)
	}

	return &Frame{
		Gray:   gray,
		Mask:   mask,
		Origin: image.Pt(region.X1, region.Y1),
	}, nil
}

// adaptiveThreshold is the native binarization: blur, local Gaussian mean,
// inverted comparison.
func adaptiveThreshold(gray *image.Gray, p Params) *image.Gray {
	blurred := gaussianSmooth(gray, p.BlurKernel)
	mean := gaussianSmooth(blurred, p.ThresholdBlock)

	bounds := gray.Bounds()
	mask := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(blurred.GrayAt(x, y).Y)
			t := float64(mean.GrayAt(x, y).Y) - p.ThresholdOffset
			if v <= t {
				mask.Pix[mask.PixOffset(x, y)] = 255
			}
		}
	}
	return mask
}

// gaussianSmooth convolves src with a separable ksize x ksize Gaussian kernel.
// Borders replicate the edge pixels.
func gaussianSmooth(src *image.Gray, ksize int) *image.Gray {
	if ksize <= 1 {
		return src
	}

	weights := gaussianWeights(ksize)

	horizontal := convolution.NewKernel(ksize, 1)
	copy(horizontal.Matrix, weights)
	vertical := convolution.NewKernel(1, ksize)
	copy(vertical.Matrix, weights)

	opts := &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: true}
	return grayFromRGBA(convolution.Convolve(convolution.Convolve(src, horizontal, opts), vertical, opts))
}

// grayFromRGBA copies the red channel of an image whose channels are equal,
// as produced by bild's grayscale and convolution filters.
func grayFromRGBA(rgba *image.RGBA) *image.Gray {
	bounds := rgba.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Pix[out.PixOffset(x, y)] = rgba.Pix[rgba.PixOffset(x, y)]
		}
	}
	return out
}

// gaussianWeights returns normalized 1-D Gaussian weights. The standard
// deviation is derived from the kernel size as 0.3*((ksize-1)*0.5-1)+0.8, the
// usual choice when no sigma is given.
func gaussianWeights(ksize int) []float64 {
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	radius := ksize / 2

	weights := make([]float64, ksize)
	var sum float64
	for i := range weights {
		d := float64(i - radius)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}
