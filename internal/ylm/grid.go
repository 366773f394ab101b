package ylm

import (
	"fmt"
	"math"

	"github.com/patrickmn/go-cache"
)

// Grids only depend on the resolution and are immutable once built.
var grids = cache.New(cache.NoExpiration, 0)

type grid struct {
	lmax   int
	mmax   int
	ntheta int
	nphi   int
	x      []float64 // cos(theta) at the Gauss-Legendre nodes
	w      []float64
	theta  []float64
	phi    []float64
	// legendre[(i*(mmax+1)+m)*(lmax+1)+l] = Pbar_l^m(x_i)
	legendre []float64
}

func gridFor(lmax, mmax int) *grid {
	key := fmt.Sprintf("%d:%d", lmax, mmax)
	if cached, ok := grids.Get(key); ok {
		return cached.(*grid)
	}
	g := newGrid(lmax, mmax)
	grids.SetDefault(key, g)
	return g
}

func newGrid(lmax, mmax int) *grid {
	g := &grid{
		lmax:   lmax,
		mmax:   mmax,
		ntheta: lmax + 1,
		nphi:   2*mmax + 1,
	}
	g.x, g.w = gaussLegendre(g.ntheta)
	g.theta = make([]float64, g.ntheta)
	for i, x := range g.x {
		g.theta[i] = math.Acos(x)
	}
	g.phi = make([]float64, g.nphi)
	for j := range g.phi {
		g.phi[j] = 2 * math.Pi * float64(j) / float64(g.nphi)
	}
	stride := (mmax + 1) * (lmax + 1)
	g.legendre = make([]float64, g.ntheta*stride)
	for i, x := range g.x {
		normalizedLegendre(x, lmax, mmax, g.legendre[i*stride:(i+1)*stride])
	}
	return g
}

func (g *grid) pbar(i, l, m int) float64 {
	return g.legendre[(i*(g.mmax+1)+m)*(g.lmax+1)+l]
}

// gaussLegendre returns n nodes on (-1, 1) in decreasing order with weights.
func gaussLegendre(n int) (nodes, weights []float64) {
	nodes = make([]float64, n)
	weights = make([]float64, n)
	for i := 0; i < n; i++ {
		x := math.Cos(math.Pi * (float64(i) + 0.75) / (float64(n) + 0.5))
		for iter := 0; iter < 100; iter++ {
			p, pPrev := legendreP(n, x)
			dx := p / (float64(n) * (x*p - pPrev) / (x*x - 1))
			x -= dx
			if math.Abs(dx) < 1e-16 {
				break
			}
		}
		p, pPrev := legendreP(n, x)
		dp := float64(n) * (x*p - pPrev) / (x*x - 1)
		nodes[i] = x
		weights[i] = 2 / ((1 - x*x) * dp * dp)
	}
	return nodes, weights
}

// legendreP returns P_n(x) and P_{n-1}(x).
func legendreP(n int, x float64) (float64, float64) {
	p0, p1 := 1.0, x
	if n == 0 {
		return p0, 0
	}
	for k := 2; k <= n; k++ {
		p0, p1 = p1, (float64(2*k-1)*x*p1-float64(k-1)*p0)/float64(k)
	}
	return p1, p0
}

// normalizedLegendre fills out[m*(lmax+1)+l] with Pbar_l^m(x) for l >= m.
func normalizedLegendre(x float64, lmax, mmax int, out []float64) {
	s := math.Sqrt(math.Max(0, 1-x*x))
	pmm := 1 / math.Sqrt2
	for m := 0; m <= mmax; m++ {
		if m > 0 {
			pmm *= s * math.Sqrt(float64(2*m+1)/float64(2*m))
		}
		row := out[m*(lmax+1) : (m+1)*(lmax+1)]
		row[m] = pmm
		if m+1 > lmax {
			continue
		}
		row[m+1] = x * math.Sqrt(float64(2*m+3)) * pmm
		for l := m + 2; l <= lmax; l++ {
			fl, fm := float64(l), float64(m)
			a := math.Sqrt((4*fl*fl - 1) / (fl*fl - fm*fm))
			b := math.Sqrt(((fl-1)*(fl-1) - fm*fm) / (4*(fl-1)*(fl-1) - 1))
			row[l] = a * (x*row[l-1] - b*row[l-2])
		}
	}
}
