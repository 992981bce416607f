package validation

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// entropyBins is the histogram resolution of Entropy
const entropyBins = 256

// Similarity describes how well the structure of a frame is preserved
type Similarity struct {
	// SSIM is the global structural similarity index, 1 for identical frames
	SSIM float64

	// MutualInformation is the Gaussian estimate -½·ln(1-ρ²) in nats. It is
	// +Inf for perfectly correlated frames and 0 when either frame is flat.
	MutualInformation float64

	// EntropyDiff is the absolute difference of the histogram entropies in bits
	EntropyDiff float64
}

// CompareStructure computes Similarity over the pixels that are finite in
// both frames
func CompareStructure(reference, reconstructed []float64) (Similarity, error) {
	if len(reference) != len(reconstructed) {
		return Similarity{}, fmt.Errorf("frames differ in size: %d and %d pixels", len(reference), len(reconstructed))
	}
	x := make([]float64, 0, len(reference))
	y := make([]float64, 0, len(reference))
	for i, v := range reference {
		w := reconstructed[i]
		if finite(v) && finite(w) {
			x = append(x, v)
			y = append(y, w)
		}
	}
	if len(x) < 2 {
		return Similarity{}, fmt.Errorf("need at least 2 comparable pixels, got %d", len(x))
	}

	return Similarity{
		SSIM:              ssim(x, y),
		MutualInformation: mutualInformation(x, y),
		EntropyDiff:       math.Abs(Entropy(x) - Entropy(y)),
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ssim uses the dynamic range of the reference frame
func ssim(x, y []float64) float64 {
	const k1, k2 = 0.01, 0.03
	l := floats.Max(x) - floats.Min(x)
	if l == 0 {
		l = 1
	}
	c1 := (k1 * l) * (k1 * l)
	c2 := (k2 * l) * (k2 * l)

	muX, varX := stat.MeanVariance(x, nil)
	muY, varY := stat.MeanVariance(y, nil)
	cov := stat.Covariance(x, y, nil)

	num := (2*muX*muY + c1) * (2*cov + c2)
	den := (muX*muX + muY*muY + c1) * (varX + varY + c2)
	return num / den
}

func mutualInformation(x, y []float64) float64 {
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0
	}
	rho := stat.Correlation(x, y, nil)
	// correlation of identical frames may miss 1 by an ulp
	if r := 1 - rho*rho; r > 1e-12 {
		return -0.5 * math.Log(r)
	}
	return math.Inf(1)
}

// Entropy returns the Shannon entropy in bits of a 256 bin histogram of
// data. Flat data has zero entropy.
func Entropy(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi <= lo {
		return 0
	}

	dividers := floats.Span(make([]float64, entropyBins+1), lo, hi)
	dividers[entropyBins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)
	floats.Scale(1/float64(len(sorted)), counts)
	return stat.Entropy(counts) / math.Ln2
}
