package bandit

import (
	"math"
	"math/rand"
)

// sampleBeta draws from Beta(alpha, beta) as Ga/(Ga+Gb) with two Gamma
// draws. Degenerate parameters fall back to the distribution mean so a
// corrupt snapshot can never wedge preset selection.
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	if alpha <= 0 || beta <= 0 {
		return 0.5
	}
	ga := sampleGamma(rng, alpha)
	gb := sampleGamma(rng, beta)
	if ga+gb == 0 {
		return alpha / (alpha + beta)
	}
	return ga / (ga + gb)
}

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia-Tsang squeeze
// method. Shapes below 1 are boosted via the Gamma(shape+1) identity.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Gamma(a) = Gamma(a+1) * U^(1/a)
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
