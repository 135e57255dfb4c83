package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// The smaller term is dropped once it falls below float64 precision.
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if b <= LogZero {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSumExp folds LogAdd over xs. An empty input yields LogZero.
func LogSumExp(xs ...float64) float64 {
	acc := LogZero
	for _, x := range xs {
		acc = LogAdd(acc, x)
	}
	return acc
}

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
