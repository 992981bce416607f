package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"sparseframe/internal/models"
	"sparseframe/pkg/sequence"
)

// Viewer renders dense detector frames as 16-bit grayscale images
type Viewer struct {
	// Low and High fix the display window. When they are equal each frame
	// is stretched over its own finite range.
	Low  float64
	High float64

	// Dummy marks masked pixels; they render black and are left out of the
	// automatic window when SkipDummy is set
	Dummy     float64
	SkipDummy bool
}

// NewViewer creates a viewer with an automatic window that ignores pixels
// equal to dummy
func NewViewer(dummy float64) *Viewer {
	return &Viewer{Dummy: dummy, SkipDummy: true}
}

func (v *Viewer) isDummy(x float64) bool {
	return v.SkipDummy && x == v.Dummy
}

// Window returns the display range used for f
func (v *Viewer) Window(f *models.Frame) (lo, hi float64) {
	if v.Low != v.High {
		return v.Low, v.High
	}
	values := make([]float64, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		x := f.At(i)
		if math.IsNaN(x) || math.IsInf(x, 0) || v.isDummy(x) {
			continue
		}
		values = append(values, x)
	}
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}

// Render maps f onto a grayscale image through the display window
func (v *Viewer) Render(f *models.Frame) (*image.Gray16, error) {
	if f == nil || f.Len() == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	lo, hi := v.Window(f)
	scale := 0.0
	if hi > lo {
		scale = 65535 / (hi - lo)
	}

	img := image.NewGray16(image.Rect(0, 0, f.Shape.Cols, f.Shape.Rows))
	for y := 0; y < f.Shape.Rows; y++ {
		for x := 0; x < f.Shape.Cols; x++ {
			value := f.AtRC(y, x)
			if math.IsNaN(value) || v.isDummy(value) {
				continue
			}
			g := math.Max(0, math.Min(65535, (value-lo)*scale))
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(g))})
		}
	}
	return img, nil
}

// SaveImage writes img to filename, encoding by extension (.png, .jpg or .jpeg)
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	return file.Close()
}

// SaveFrame renders f and writes it to filename
func (v *Viewer) SaveFrame(f *models.Frame, filename string) error {
	img, err := v.Render(f)
	if err != nil {
		return err
	}
	return v.SaveImage(img, filename)
}

// FrameFilename names the image of frame n in a saved sequence
func FrameFilename(n int, format string) string {
	return fmt.Sprintf("frame_%04d.%s", n, format)
}

// SaveSequence renders every frame of seq into outputDir using up to workers
// goroutines and returns the number of images written. format is "png" or
// "jpg".
func (v *Viewer) SaveSequence(ctx context.Context, seq *sequence.Sequence, outputDir, format string, workers int) (int, error) {
	switch format {
	case "png", "jpg", "jpeg":
	default:
		return 0, fmt.Errorf("unsupported image format %q (must be png or jpg)", format)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	written := 0
	err := seq.MaterializeAll(ctx, workers, func(f *models.Frame) error {
		if err := v.SaveFrame(f, filepath.Join(outputDir, FrameFilename(f.Number, format))); err != nil {
			return fmt.Errorf("frame %d: %w", f.Number, err)
		}
		written++
		return nil
	})
	return written, err
}
