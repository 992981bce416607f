package interpolation

import "sort"

// bucketsPerKnot sizes the lookup table relative to the number of knots
const bucketsPerKnot = 4

// Lookup is a piecewise linear evaluator accelerated by a uniform bucket
// table over the radius axis. It selects the same segment and performs the
// same arithmetic as the reference evaluator, so both agree bit for bit.
// A Lookup is read-only after construction and safe for concurrent use.
type Lookup struct {
	p     *Profile
	lo    float64
	scale float64
	start []int32
}

// Fast builds the accelerated evaluator for the profile
func (p *Profile) Fast() *Lookup {
	l := &Lookup{p: p, lo: p.xs[0]}
	n := len(p.xs)
	if n < 2 {
		return l
	}

	span := p.xs[n-1] - p.xs[0]
	nb := n * bucketsPerKnot
	l.scale = float64(nb) / span
	l.start = make([]int32, nb)
	for b := range l.start {
		edge := p.xs[0] + float64(b)/l.scale
		// last knot at or below the bucket edge
		i := sort.Search(n, func(k int) bool { return p.xs[k] > edge }) - 1
		if i < 0 {
			i = 0
		}
		l.start[b] = int32(i)
	}
	return l
}

// Predict returns the background value at radial distance r
func (l *Lookup) Predict(r float64) float64 {
	p := l.p
	xs := p.xs
	n := len(xs)
	// NaN fails every comparison and lands on the first value
	if !(r >= xs[0]) {
		return p.left[0]
	}
	if r >= xs[n-1] {
		return p.right[n-1]
	}

	b := int((r - l.lo) * l.scale)
	if b >= len(l.start) {
		b = len(l.start) - 1
	}
	i := int(l.start[b])
	for i > 0 && xs[i] > r {
		i--
	}
	for i+1 < n && xs[i+1] <= r {
		i++
	}

	xI := xs[i]
	if r == xI {
		return p.right[i]
	}
	return p.right[i] + p.slopes[i]*(r-xI)
}
