package services

import "math"

const sqrt2Pi = 2.5066282746310002

// PutGreeks is a Black-Scholes style approximation for a European put
type PutGreeks struct {
	Delta float64
	Gamma float64
	Theta float64 // per calendar day
}

// ApproximatePutGreeks estimates greeks with zero rates. Degenerate inputs
// (no time or no volatility) collapse to the intrinsic delta and zero gamma/theta.
func ApproximatePutGreeks(spot, strike, iv float64, dte int) PutGreeks {
	t := float64(dte) / 365
	if spot <= 0 || strike <= 0 || t <= 0 || iv <= 0 {
		delta := 0.0
		if strike > spot {
			delta = -1
		}
		return PutGreeks{Delta: delta}
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + 0.5*iv*iv*t) / (iv * sqrtT)
	pdf := normPDF(d1)

	return PutGreeks{
		Delta: normCDF(d1) - 1,
		Gamma: pdf / (spot * iv * sqrtT),
		Theta: -(spot * pdf * iv) / (2 * sqrtT) / 365,
	}
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / sqrt2Pi
}
