// Package pricing implements closed-form European option pricing.
//
// All functions are pure and operate on annualized inputs: T in years,
// sigma as a decimal (0.75 = 75%). For crypto underlyings the risk-free
// rate is conventionally 0 since funding/carry is not modeled.
package pricing

import (
	"fmt"
	"math"
)

const sqrt2Pi = 2.5066282746310002

// Greeks bundles the closed-form outputs for one contract.
// Theta is the daily decay (annual theta / 365); Vega is per unit of
// volatility (multiply by 0.01 for a per-1% figure).
type Greeks struct {
	Price float64
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
}

// Intrinsic returns the settlement value of an option.
func Intrinsic(isCall bool, S, K float64) float64 {
	if isCall {
		return math.Max(0, S-K)
	}
	return math.Max(0, K-S)
}

// expired returns the settlement-boundary Greeks: intrinsic price,
// step delta, and zero for every time-value sensitivity.
func expired(isCall bool, S, K float64) Greeks {
	g := Greeks{Price: Intrinsic(isCall, S, K)}
	if isCall && S > K {
		g.Delta = 1
	} else if !isCall && K > S {
		g.Delta = -1
	}
	return g
}

// Compute evaluates the Black-Scholes price and Greeks.
//
// Degenerate inputs are boundary states, not errors: T <= 0 or
// sigma <= 0 yields the expired/intrinsic result. Spot and strike must
// be positive; that is the caller's contract (the Greeks service
// validates before calling).
func Compute(isCall bool, S, K, T, r, sigma float64) Greeks {
	if T <= 0 || sigma <= 0 {
		return expired(isCall, S, K)
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	// Deep wings overflow the CDF tails to exactly 0/1 anyway;
	// clamping keeps the PDF terms finite.
	d1 = clamp(d1, -10, 10)
	d2 = clamp(d2, -10, 10)

	var g Greeks
	if isCall {
		g.Price = S*normCDF(d1) - K*math.Exp(-r*T)*normCDF(d2)
		g.Delta = normCDF(d1)
	} else {
		g.Price = K*math.Exp(-r*T)*normCDF(-d2) - S*normCDF(-d1)
		g.Delta = normCDF(d1) - 1
	}
	g.Price = math.Max(g.Price, 0)

	g.Gamma = normPDF(d1) / (S * sigma * sqrtT)
	g.Vega = S * normPDF(d1) * sqrtT

	thetaAnnual := -(S * normPDF(d1) * sigma) / (2 * sqrtT)
	if isCall {
		thetaAnnual -= r * K * math.Exp(-r*T) * normCDF(d2)
	} else {
		thetaAnnual += r * K * math.Exp(-r*T) * normCDF(-d2)
	}
	g.Theta = thetaAnnual / 365.0

	return sanitize(g)
}

// Price returns only the Black-Scholes premium.
func Price(isCall bool, S, K, T, r, sigma float64) float64 {
	return Compute(isCall, S, K, T, r, sigma).Price
}

// Vega returns only the Black-Scholes vega.
func Vega(S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 {
		return 0
	}
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	return S * normPDF(d1) * math.Sqrt(T)
}

// ImpliedVolATM solves for the volatility that reprices the average of
// the call and put mid prices at the given strike, via Newton-Raphson.
// Used to recover an ATM IV for history rows that lack a DVOL quote.
func ImpliedVolATM(S, K, T, r, callPrice, putPrice float64) (float64, error) {
	if T <= 0 {
		return 0, fmt.Errorf("implied vol: non-positive expiry %f", T)
	}

	marketPrice := (callPrice + putPrice) / 2
	sigma := 0.20 // initial guess

	const (
		maxIter = 100
		tol     = 1e-6
	)

	for i := 0; i < maxIter; i++ {
		diff := Price(true, S, K, T, r, sigma) - marketPrice
		if math.Abs(diff) < tol {
			return sigma, nil
		}

		vega := Vega(S, K, T, r, sigma)
		if vega < 1e-8 {
			break
		}
		sigma -= diff / vega

		// Guardrails
		if sigma <= 0 {
			sigma = 1e-4
		}
		if sigma > 5 {
			sigma = 5
		}
	}

	return 0, fmt.Errorf("implied vol did not converge")
}

func sanitize(g Greeks) Greeks {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	g.Price = fix(g.Price)
	g.Delta = fix(g.Delta)
	g.Gamma = fix(g.Gamma)
	g.Vega = fix(g.Vega)
	g.Theta = fix(g.Theta)
	return g
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// normPDF is the standard normal probability density at x.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / sqrt2Pi
}

// normCDF is the standard normal cumulative distribution at x,
// via the error function.
func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}
