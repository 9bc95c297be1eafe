package utils

import (
	"math/big"
	"math/rand"
)

// Prime field modulus. Using a large prime for exactness (the secp256k1
// field prime p).
// In a real system, this should be configurable.
var Prime, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEFFFFFC2F", 16)

// Polynomial represents a univariate polynomial over the prime field.
// Coefficients are in increasing order of degree: a_0 + a_1*x + ... + a_t*x^t.
// Coefficients are always reduced mod Prime and trailing zeros are trimmed,
// so two polynomials are equal iff their coefficient slices are equal.
type Polynomial struct {
	Coeffs []*big.Int
}

// NewPolynomial builds a polynomial from the given coefficients,
// reducing them mod Prime and trimming trailing zero coefficients.
// The zero polynomial keeps a single zero coefficient.
func NewPolynomial(coeffs []*big.Int) *Polynomial {
	reduced := make([]*big.Int, len(coeffs))
	for i, c := range coeffs {
		reduced[i] = new(big.Int).Mod(c, Prime)
	}
	p := &Polynomial{Coeffs: reduced}
	p.minimize()
	return p
}

// PolyFromInt64 is a convenience constructor used in tests and by the
// interpolation helpers.
func PolyFromInt64(coeffs ...int64) *Polynomial {
	bigs := make([]*big.Int, len(coeffs))
	for i, c := range coeffs {
		bigs[i] = big.NewInt(c)
	}
	return NewPolynomial(bigs)
}

func (p *Polynomial) minimize() {
	for len(p.Coeffs) > 1 && p.Coeffs[len(p.Coeffs)-1].Sign() == 0 {
		p.Coeffs = p.Coeffs[:len(p.Coeffs)-1]
	}
	if len(p.Coeffs) == 0 {
		p.Coeffs = []*big.Int{big.NewInt(0)}
	}
}

// Degree returns len(coeffs) - 1; the zero polynomial has degree 0.
func (p *Polynomial) Degree() int {
	return len(p.Coeffs) - 1
}

// Evaluate evaluates the polynomial at x using Horner's method.
func (p *Polynomial) Evaluate(x *big.Int) *big.Int {
	result := big.NewInt(0)
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		result.Mul(result, x)
		result.Add(result, p.Coeffs[i])
		result.Mod(result, Prime)
	}
	return result
}

// EvaluateAt evaluates the polynomial at a processor index.
func (p *Polynomial) EvaluateAt(x int) *big.Int {
	return p.Evaluate(big.NewInt(int64(x)))
}

// Add returns p + q as a new polynomial.
func (p *Polynomial) Add(q *Polynomial) *Polynomial {
	longer, shorter := p.Coeffs, q.Coeffs
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	res := make([]*big.Int, len(longer))
	for i, c := range longer {
		res[i] = new(big.Int).Set(c)
	}
	for i, c := range shorter {
		res[i].Add(res[i], c)
	}
	return NewPolynomial(res)
}

// Mul returns p * q as a new polynomial.
func (p *Polynomial) Mul(q *Polynomial) *Polynomial {
	res := make([]*big.Int, p.Degree()+q.Degree()+1)
	for i := range res {
		res[i] = big.NewInt(0)
	}
	for i, a := range p.Coeffs {
		for j, b := range q.Coeffs {
			res[i+j].Add(res[i+j], new(big.Int).Mul(a, b))
		}
	}
	return NewPolynomial(res)
}

// ScalarMul multiplies every coefficient by c in place and returns p.
func (p *Polynomial) ScalarMul(c *big.Int) *Polynomial {
	for i := range p.Coeffs {
		p.Coeffs[i].Mul(p.Coeffs[i], c)
		p.Coeffs[i].Mod(p.Coeffs[i], Prime)
	}
	p.minimize()
	return p
}

// Equal reports coefficient equality. Both sides are already minimized.
func (p *Polynomial) Equal(q *Polynomial) bool {
	if len(p.Coeffs) != len(q.Coeffs) {
		return false
	}
	for i := range p.Coeffs {
		if p.Coeffs[i].Cmp(q.Coeffs[i]) != 0 {
			return false
		}
	}
	return true
}

// RandomPolynomial samples a polynomial of degree at most deg whose
// constant term is secret.
func RandomPolynomial(rng *rand.Rand, secret *big.Int, deg int) *Polynomial {
	coeffs := make([]*big.Int, deg+1)
	coeffs[0] = new(big.Int).Mod(secret, Prime)
	for i := 1; i <= deg; i++ {
		coeffs[i] = new(big.Int).Rand(rng, Prime)
	}
	return NewPolynomial(coeffs)
}

// Point is an interpolation point (X, Y) with X a processor index.
type Point struct {
	X int
	Y *big.Int
}

// Interpolate returns the unique polynomial of degree < len(points)
// passing through all points. The X values must be pairwise distinct.
// All arithmetic is exact over the prime field.
func Interpolate(points []Point) *Polynomial {
	total := PolyFromInt64(0)
	for i := range points {
		basis := lagrangeBasis(points, i)
		basis.ScalarMul(points[i].Y)
		total = total.Add(basis)
	}
	return total
}

// lagrangeBasis computes l_i(x) = prod_{m != i} (x - x_m) / (x_i - x_m).
// The denominator product is inverted once mod Prime.
func lagrangeBasis(points []Point, index int) *Polynomial {
	total := PolyFromInt64(1)
	den := big.NewInt(1)
	for m := range points {
		if m == index {
			continue
		}
		total = total.Mul(PolyFromInt64(int64(-points[m].X), 1))
		diff := big.NewInt(int64(points[index].X - points[m].X))
		den.Mul(den, diff.Mod(diff, Prime))
		den.Mod(den, Prime)
	}
	return total.ScalarMul(new(big.Int).ModInverse(den, Prime))
}

// BivariatePolynomial represents P(x, y) as rows of y-coefficients:
// Coeffs[i][j] is the coefficient of x^i * y^j. Each row is trimmed like
// a univariate polynomial and trailing zero rows are dropped.
type BivariatePolynomial struct {
	Coeffs [][]*big.Int
}

// NewBivariatePolynomial builds a bivariate polynomial, reducing all
// coefficients mod Prime and minimizing rows.
func NewBivariatePolynomial(coeffs [][]*big.Int) *BivariatePolynomial {
	rows := make([][]*big.Int, len(coeffs))
	for i, row := range coeffs {
		rows[i] = NewPolynomial(row).Coeffs
	}
	bp := &BivariatePolynomial{Coeffs: rows}
	bp.minimize()
	return bp
}

// BivariateFromInt64 is a test convenience mirroring PolyFromInt64.
func BivariateFromInt64(rows ...[]int64) *BivariatePolynomial {
	coeffs := make([][]*big.Int, len(rows))
	for i, row := range rows {
		coeffs[i] = make([]*big.Int, len(row))
		for j, c := range row {
			coeffs[i][j] = big.NewInt(c)
		}
	}
	return NewBivariatePolynomial(coeffs)
}

func (bp *BivariatePolynomial) minimize() {
	for len(bp.Coeffs) > 1 {
		last := bp.Coeffs[len(bp.Coeffs)-1]
		if len(last) != 1 || last[0].Sign() != 0 {
			break
		}
		bp.Coeffs = bp.Coeffs[:len(bp.Coeffs)-1]
	}
}

// XDegree is the degree in x.
func (bp *BivariatePolynomial) XDegree() int {
	return len(bp.Coeffs) - 1
}

// YDegree is the degree in y.
func (bp *BivariatePolynomial) YDegree() int {
	max := 1
	for _, row := range bp.Coeffs {
		if len(row) > max {
			max = len(row)
		}
	}
	return max - 1
}

// Evaluate evaluates P(x, y).
func (bp *BivariatePolynomial) Evaluate(x, y *big.Int) *big.Int {
	total := big.NewInt(0)
	xPower := big.NewInt(1)
	for _, row := range bp.Coeffs {
		rowVal := (&Polynomial{Coeffs: row}).Evaluate(y)
		rowVal.Mul(rowVal, xPower)
		total.Add(total, rowVal)
		total.Mod(total, Prime)
		xPower.Mul(xPower, x)
		xPower.Mod(xPower, Prime)
	}
	return total
}

// EvaluateAt evaluates P at processor indices.
func (bp *BivariatePolynomial) EvaluateAt(x, y int) *big.Int {
	return bp.Evaluate(big.NewInt(int64(x)), big.NewInt(int64(y)))
}

// Add returns bp + other as a new bivariate polynomial.
func (bp *BivariatePolynomial) Add(other *BivariatePolynomial) *BivariatePolynomial {
	xLen := len(bp.Coeffs)
	if len(other.Coeffs) > xLen {
		xLen = len(other.Coeffs)
	}
	yLen := bp.YDegree() + 1
	if other.YDegree()+1 > yLen {
		yLen = other.YDegree() + 1
	}
	res := make([][]*big.Int, xLen)
	for i := range res {
		res[i] = make([]*big.Int, yLen)
		for j := range res[i] {
			res[i][j] = big.NewInt(0)
			if i < len(bp.Coeffs) && j < len(bp.Coeffs[i]) {
				res[i][j].Add(res[i][j], bp.Coeffs[i][j])
			}
			if i < len(other.Coeffs) && j < len(other.Coeffs[i]) {
				res[i][j].Add(res[i][j], other.Coeffs[i][j])
			}
		}
	}
	return NewBivariatePolynomial(res)
}

// Mul returns bp * other as a new bivariate polynomial.
func (bp *BivariatePolynomial) Mul(other *BivariatePolynomial) *BivariatePolynomial {
	xDeg := bp.XDegree() + other.XDegree()
	yDeg := bp.YDegree() + other.YDegree()
	res := make([][]*big.Int, xDeg+1)
	for i := range res {
		res[i] = make([]*big.Int, yDeg+1)
		for j := range res[i] {
			res[i][j] = big.NewInt(0)
		}
	}
	for x1, row1 := range bp.Coeffs {
		for y1, c1 := range row1 {
			for x2, row2 := range other.Coeffs {
				for y2, c2 := range row2 {
					res[x1+x2][y1+y2].Add(res[x1+x2][y1+y2], new(big.Int).Mul(c1, c2))
				}
			}
		}
	}
	return NewBivariatePolynomial(res)
}

// ScalarMul multiplies every coefficient by c in place and returns bp.
func (bp *BivariatePolynomial) ScalarMul(c *big.Int) *BivariatePolynomial {
	for _, row := range bp.Coeffs {
		for j := range row {
			row[j].Mul(row[j], c)
			row[j].Mod(row[j], Prime)
		}
	}
	return bp
}

// Equal reports coefficient equality.
func (bp *BivariatePolynomial) Equal(other *BivariatePolynomial) bool {
	if len(bp.Coeffs) != len(other.Coeffs) {
		return false
	}
	for i := range bp.Coeffs {
		if len(bp.Coeffs[i]) != len(other.Coeffs[i]) {
			return false
		}
		for j := range bp.Coeffs[i] {
			if bp.Coeffs[i][j].Cmp(other.Coeffs[i][j]) != 0 {
				return false
			}
		}
	}
	return true
}

// G returns the row slice g_j(y) = P(j, y): the rows are summed with
// weights j^i. For any bivariate P, G(j).EvaluateAt(k) == P(j, k).
func (bp *BivariatePolynomial) G(j int) *Polynomial {
	coeffs := make([]*big.Int, bp.YDegree()+1)
	for i := range coeffs {
		coeffs[i] = big.NewInt(0)
	}
	jBig := big.NewInt(int64(j))
	pow := big.NewInt(1)
	for _, row := range bp.Coeffs {
		for i, c := range row {
			coeffs[i].Add(coeffs[i], new(big.Int).Mul(c, pow))
		}
		pow.Mul(pow, jBig)
		pow.Mod(pow, Prime)
	}
	return NewPolynomial(coeffs)
}

// H returns the column slice h_j(x) = P(x, j): each row is evaluated
// at j to produce one x-coefficient. H(j).EvaluateAt(k) == P(k, j).
func (bp *BivariatePolynomial) H(j int) *Polynomial {
	coeffs := make([]*big.Int, len(bp.Coeffs))
	jBig := big.NewInt(int64(j))
	for i, row := range bp.Coeffs {
		coeffs[i] = (&Polynomial{Coeffs: row}).Evaluate(jBig)
	}
	return NewPolynomial(coeffs)
}

// RandomBivariate samples a bivariate polynomial of degree deg in both
// variables with P(0, 0) = secret.
func RandomBivariate(rng *rand.Rand, secret *big.Int, deg int) *BivariatePolynomial {
	coeffs := make([][]*big.Int, deg+1)
	for i := range coeffs {
		coeffs[i] = make([]*big.Int, deg+1)
		for j := range coeffs[i] {
			coeffs[i][j] = new(big.Int).Rand(rng, Prime)
		}
	}
	coeffs[0][0] = new(big.Int).Mod(secret, Prime)
	return NewBivariatePolynomial(coeffs)
}
