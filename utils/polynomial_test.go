package utils

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolynomialMinimize(t *testing.T) {
	assert.True(t, PolyFromInt64(1, 2, 0).Equal(PolyFromInt64(1, 2)))
	assert.Equal(t, PolyFromInt64(1, 2).Degree(), PolyFromInt64(1, 2, 0).Degree())

	zero := PolyFromInt64(0)
	require.Len(t, zero.Coeffs, 1)
	assert.Equal(t, 0, zero.Coeffs[0].Sign())
	assert.Equal(t, 0, zero.Degree())

	assert.True(t, PolyFromInt64(0, 0, 0).Equal(zero))
}

func TestPolynomialOps(t *testing.T) {
	f := PolyFromInt64(1, 2, 3)
	g := PolyFromInt64(0, -1, 1)

	assert.True(t, f.Add(g).Equal(PolyFromInt64(1, 1, 4)))
	assert.True(t, f.Mul(g).Equal(PolyFromInt64(0, -1, -1, -1, 3)))
	assert.Equal(t, 0, f.EvaluateAt(2).Cmp(big.NewInt(17)))

	f.ScalarMul(big.NewInt(2))
	assert.True(t, f.Equal(PolyFromInt64(2, 4, 6)))
}

func TestInterpolate(t *testing.T) {
	p := Interpolate([]Point{{1, big.NewInt(5)}, {2, big.NewInt(11)}, {3, big.NewInt(19)}, {4, big.NewInt(29)}})
	assert.Equal(t, 0, p.Evaluate(big.NewInt(0)).Cmp(big.NewInt(1)))

	q := PolyFromInt64(3, -15, 6)
	var points []Point
	for x := 0; x < 20; x++ {
		points = append(points, Point{X: x, Y: q.EvaluateAt(x)})
	}
	assert.True(t, q.Equal(Interpolate(points)))
}

func TestInterpolateInvertsEvaluation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		deg := rng.Intn(6) + 1
		p := RandomPolynomial(rng, big.NewInt(int64(rng.Intn(100)+1)), deg)

		points := make([]Point, 0, deg+1)
		for x := 1; x <= deg+1; x++ {
			points = append(points, Point{X: x, Y: p.EvaluateAt(x)})
		}
		assert.True(t, p.Equal(Interpolate(points)), "interpolation must invert evaluation")
	}
}

func TestRandomPolynomial(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 10; trial++ {
		secret := big.NewInt(int64(rng.Intn(100) + 1))
		p := RandomPolynomial(rng, secret, 4)
		assert.Equal(t, 0, p.Evaluate(big.NewInt(0)).Cmp(secret))
		assert.LessOrEqual(t, p.Degree(), 4)
	}
}

func TestBivariateMinimize(t *testing.T) {
	g := BivariateFromInt64([]int64{2, 0}, []int64{1, 2, 3}, []int64{0})
	assert.True(t, g.Equal(BivariateFromInt64([]int64{2}, []int64{1, 2, 3})))
}

func TestBivariateOps(t *testing.T) {
	f := BivariateFromInt64([]int64{1, -1, 2}, []int64{3, 0, 2}, []int64{-1, -2, 1})
	g := BivariateFromInt64([]int64{2, 0}, []int64{1, 2, 3}, []int64{0})

	sum := BivariateFromInt64([]int64{3, -1, 2}, []int64{4, 2, 5}, []int64{-1, -2, 1})
	assert.True(t, f.Add(g).Equal(sum))

	product := BivariateFromInt64(
		[]int64{2, -2, 4},
		[]int64{7, 1, 7, 1, 6},
		[]int64{1, 2, 13, 4, 6},
		[]int64{-1, -4, -6, -4, 3},
	)
	assert.True(t, f.Mul(g).Equal(product))
}

func TestBivariateScalarMul(t *testing.T) {
	f := BivariateFromInt64([]int64{1, 2}, []int64{3, 4})
	f.ScalarMul(big.NewInt(3))
	assert.True(t, f.Equal(BivariateFromInt64([]int64{3, 6}, []int64{9, 12})))
}

func TestBivariateEvaluate(t *testing.T) {
	// f(x, y) = x²y² - 2x²y - x² + 2xy² + 3x + 2y² - y + 1
	f := BivariateFromInt64([]int64{1, -1, 2}, []int64{3, 0, 2}, []int64{-1, -2, 1})
	expect := func(x, y int64) *big.Int {
		v := x*x*y*y - 2*x*x*y - x*x + 2*x*y*y + 3*x + 2*y*y - y + 1
		return new(big.Int).Mod(big.NewInt(v), Prime)
	}

	for _, pt := range [][2]int64{{2, 3}, {0, 4}, {5, 1}, {7, 7}} {
		assert.Equal(t, 0, f.EvaluateAt(int(pt[0]), int(pt[1])).Cmp(expect(pt[0], pt[1])))
	}
}

func TestBivariateSlices(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 10; trial++ {
		secret := big.NewInt(int64(rng.Intn(100) + 1))
		bp := RandomBivariate(rng, secret, 4)
		assert.Equal(t, 0, bp.EvaluateAt(0, 0).Cmp(secret))

		j := rng.Intn(4) + 1
		for k := 1; k <= 5; k++ {
			assert.Equal(t, 0, bp.G(j).EvaluateAt(k).Cmp(bp.EvaluateAt(j, k)), "g_j(k) == P(j,k)")
			assert.Equal(t, 0, bp.H(j).EvaluateAt(k).Cmp(bp.EvaluateAt(k, j)), "h_j(k) == P(k,j)")
			assert.Equal(t, 0, bp.G(j).EvaluateAt(k).Cmp(bp.H(k).EvaluateAt(j)), "g_j(k) == h_k(j)")
		}

		var gPoints, hPoints []Point
		for i := 0; i <= 4; i++ {
			gPoints = append(gPoints, Point{X: i, Y: bp.EvaluateAt(j, i)})
			hPoints = append(hPoints, Point{X: i, Y: bp.EvaluateAt(i, j)})
		}
		assert.True(t, bp.G(j).Equal(Interpolate(gPoints)))
		assert.True(t, bp.H(j).Equal(Interpolate(hPoints)))
	}
}
