// Package synth generates synthetic sparse frame series together with the
// dense frames they encode. Each frame is a radially symmetric background
// asinh(scale·sinc(r/osc)²) rounded to integers, plus randomly placed peaks.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"sparseframe/internal/models"
	"sparseframe/pkg/source"
)

// Params controls the generator
type Params struct {
	// Shape is the detector extent; the centre sits at (Rows/2, Cols/2)
	Shape models.Shape `yaml:"shape"`

	// Frames is the number of frames in the series
	Frames int `yaml:"frames"`

	// RadiusPoints is the number of samples on the radius axis
	RadiusPoints int `yaml:"radiusPoints"`

	// Peaks, Scale and Oscillation are drawn per frame from [Min, Max)
	PeaksMin int `yaml:"peaksMin"`
	PeaksMax int `yaml:"peaksMax"`
	ScaleMin int `yaml:"scaleMin"`
	ScaleMax int `yaml:"scaleMax"`
	OscMin   int `yaml:"oscMin"`
	OscMax   int `yaml:"oscMax"`

	// IntensityMax bounds peak intensities, drawn from [0, IntensityMax)
	IntensityMax int `yaml:"intensityMax"`

	// MaskBeyond masks pixels farther than this from the centre; 0 disables
	MaskBeyond float64 `yaml:"maskBeyond"`

	// Dummy fills masked pixels
	Dummy float64 `yaml:"dummy"`

	// Seed makes the series reproducible
	Seed uint64 `yaml:"seed"`
}

// DefaultParams returns the 256×256, 8 frame series with 181 radii and
// 90 to 110 peaks per frame
func DefaultParams() Params {
	return Params{
		Shape:        models.Shape{Rows: 256, Cols: 256},
		Frames:       8,
		RadiusPoints: 181,
		PeaksMin:     90,
		PeaksMax:     110,
		ScaleMin:     90,
		ScaleMax:     110,
		OscMin:       40,
		OscMax:       100,
		IntensityMax: 10,
		Seed:         1,
	}
}

// Series is a generated sparse encoding and the dense frames it stands for
type Series struct {
	Layout *source.Layout

	// Truth holds the dense uint16 frames the layout encodes
	Truth [][]uint16
}

// Sinc is the normalised sinc function sin(πx)/(πx)
func Sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// Background is the radial profile of one frame
func Background(r, scale, osc float64) float64 {
	s := Sinc(r / osc)
	return math.Asinh(scale * s * s)
}

// single rounds to float32 precision, the storage type of the generated arrays
func single(v float64) float64 {
	return float64(float32(v))
}

// Generate builds a series with uint16 intensities
func Generate(p Params) (*Series, error) {
	if p.Shape.Rows <= 0 || p.Shape.Cols <= 0 || p.Frames <= 0 || p.RadiusPoints <= 0 {
		return nil, fmt.Errorf("synth: invalid parameters %+v", p)
	}
	if p.PeaksMax <= p.PeaksMin || p.ScaleMax <= p.ScaleMin || p.OscMax <= p.OscMin || p.OscMin <= 0 || p.IntensityMax <= 0 {
		return nil, fmt.Errorf("synth: empty parameter range in %+v", p)
	}
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	size := p.Shape.Size()

	radial := make([]float64, size)
	cy, cx := p.Shape.Rows/2, p.Shape.Cols/2
	rmax := 0.0
	for y := 0; y < p.Shape.Rows; y++ {
		for x := 0; x < p.Shape.Cols; x++ {
			dy, dx := float64(y-cy), float64(x-cx)
			r := single(math.Sqrt(dx*dx + dy*dy))
			rmax = math.Max(rmax, r)
			radial[y*p.Shape.Cols+x] = r
		}
	}

	radius := []float64{0}
	if p.RadiusPoints > 1 {
		radius = floats.Span(make([]float64, p.RadiusPoints), 0, rmax)
	}
	for i, r := range radius {
		radius[i] = single(r)
	}

	l := &source.Layout{
		Shape:      p.Shape,
		Radius:     radius,
		Background: make([][]float64, p.Frames),
		FramePtr:   make([]int64, p.Frames+1),
		Dummy:      p.Dummy,
		DType:      models.Uint16,
	}
	truth := make([][]uint16, p.Frames)

	for f := 0; f < p.Frames; f++ {
		npeak := p.PeaksMin + rng.IntN(p.PeaksMax-p.PeaksMin)
		scale := float64(p.ScaleMin + rng.IntN(p.ScaleMax-p.ScaleMin))
		osc := float64(p.OscMin + rng.IntN(p.OscMax-p.OscMin))

		row := make([]float64, p.RadiusPoints)
		for i, r := range radius {
			row[i] = single(Background(r, scale, osc))
		}
		l.Background[f] = row

		frame := make([]uint16, size)
		for i, r := range radial {
			frame[i] = uint16(math.RoundToEven(Background(r, scale, osc)))
		}
		for k := 0; k < npeak; k++ {
			pos := int64(rng.IntN(size))
			val := float64(rng.IntN(p.IntensityMax))
			l.Index = append(l.Index, pos)
			l.Intensity = append(l.Intensity, val)
			frame[pos] = uint16(val)
		}
		l.FramePtr[f+1] = int64(len(l.Index))
		truth[f] = frame
	}

	if p.MaskBeyond > 0 {
		dummy := uint16(math.RoundToEven(p.Dummy))
		for i, r := range radial {
			if r > p.MaskBeyond {
				radial[i] = math.NaN()
				for _, frame := range truth {
					frame[i] = dummy
				}
			}
		}
	}
	l.RadialMap = radial

	return &Series{Layout: l, Truth: truth}, nil
}
