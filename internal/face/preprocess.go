package face

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/zsiec/asdcore/internal/asderrors"
	"github.com/zsiec/asdcore/internal/geom"
)

// CropConfig bundles the crop/resize/normalize parameters from spec.md
// §4.2/§6: cropScale, frameSize (W×H), and the grayscale normalization.
type CropConfig struct {
	CropScale               float64
	FrameWidth, FrameHeight int
	Norm                    Normalization
}

// decodeBGRA wraps a raw BGRA8 pixel buffer (spec.md §6: "any BGRA/ARGB
// 32-bit layout") as a stdlib image.NRGBA so x/image/draw can operate on it.
func decodeBGRA(pixelBuffer []byte, width, height int) (*image.NRGBA, error) {
	want := width * height * 4
	if len(pixelBuffer) < want {
		return nil, fmt.Errorf("pixel buffer too small: want %d bytes, got %d", want, len(pixelBuffer))
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		b, g, r, a := pixelBuffer[i*4], pixelBuffer[i*4+1], pixelBuffer[i*4+2], pixelBuffer[i*4+3]
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = r, g, b, a
	}
	return img, nil
}

// ComputeCropRect derives the square pixel-space crop rectangle around a
// normalized image-space detection box: expanded by cropScale and centered
// slightly below the face midpoint, offset = boxSize·cropScale (spec.md
// §4.2 step 1).
func ComputeCropRect(box geom.Box, imgW, imgH int, cropScale float64) image.Rectangle {
	boxSizePx := box.W * float64(imgW)
	if bh := box.H * float64(imgH); bh > boxSizePx {
		boxSizePx = bh
	}
	cropSize := boxSizePx * (1 + cropScale)
	offset := boxSizePx * cropScale

	cx := (box.X + box.W/2) * float64(imgW)
	cy := (box.Y+box.H/2)*float64(imgH) + offset
	half := cropSize / 2

	return image.Rect(int(cx-half), int(cy-half), int(cx+half), int(cy+half))
}

// PrepareFrame crops, resizes, grayscales, and normalizes one detection's
// face region per spec.md §4.2 steps 1-3, returning the flattened float32
// frame (row-major, length FrameWidth*FrameHeight) and the normalized
// image-space crop rectangle actually used. Out-of-image regions are
// padded with the same default-gray value used for blank frames.
func PrepareFrame(pixelBuffer []byte, imgW, imgH int, box geom.Box, cfg CropConfig) ([]float32, geom.Box, error) {
	src, err := decodeBGRA(pixelBuffer, imgW, imgH)
	if err != nil {
		return nil, geom.Box{}, asderrors.Wrap(asderrors.ImagePreprocessUnsupportedFormat, "face.preprocess", err)
	}

	cropRect := ComputeCropRect(box, imgW, imgH, cfg.CropScale)
	if cropRect.Dx() <= 0 || cropRect.Dy() <= 0 {
		return nil, geom.Box{}, asderrors.New(asderrors.ResizeFailed, "face.preprocess")
	}

	defaultGray := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	canvas := image.NewNRGBA(image.Rect(0, 0, cropRect.Dx(), cropRect.Dy()))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: defaultGray}, image.Point{}, draw.Src)

	if visible := cropRect.Intersect(src.Bounds()); !visible.Empty() {
		dstOrigin := image.Pt(visible.Min.X-cropRect.Min.X, visible.Min.Y-cropRect.Min.Y)
		dstRect := image.Rectangle{Min: dstOrigin, Max: dstOrigin.Add(visible.Size())}
		draw.Draw(canvas, dstRect, src, visible.Min, draw.Src)
	}

	resized := image.NewNRGBA(image.Rect(0, 0, cfg.FrameWidth, cfg.FrameHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), canvas, canvas.Bounds(), draw.Over, nil)

	out := make([]float32, cfg.FrameWidth*cfg.FrameHeight)
	for i := 0; i < cfg.FrameWidth*cfg.FrameHeight; i++ {
		r, g, b := resized.Pix[i*4], resized.Pix[i*4+1], resized.Pix[i*4+2]
		luma := 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
		out[i] = (luma/255 - cfg.Norm.Bias) * cfg.Norm.Scale
	}

	usedCrop := geom.Box{
		X: float64(cropRect.Min.X) / float64(imgW),
		Y: float64(cropRect.Min.Y) / float64(imgH),
		W: float64(cropRect.Dx()) / float64(imgW),
		H: float64(cropRect.Dy()) / float64(imgH),
	}
	return out, usedCrop, nil
}
