package liquidity

import "math/big"

// isqrtIterations caps the Newton iteration so a pathological input can never
// spin. Convergence is quadratic, so 100 rounds is far beyond what any 256-bit
// operand needs.
const isqrtIterations = 100

// isqrt returns the integer square root of n using the Babylonian/Newton
// iteration, flooring the result. Degenerate inputs (n ≤ 0 or a result that
// floors below one) return 1 so a first liquidity deposit always mints at
// least one share.
func isqrt(n *big.Int) *big.Int {
	one := big.NewInt(1)
	if n == nil || n.Sign() <= 0 {
		return one
	}
	if n.Cmp(one) <= 0 {
		return one
	}
	guess := new(big.Int).Rsh(n, uint(n.BitLen()/2))
	if guess.Sign() == 0 {
		guess.Set(one)
	}
	for i := 0; i < isqrtIterations; i++ {
		// next = (guess + n/guess) / 2, truncating.
		next := new(big.Int).Quo(n, guess)
		next.Add(next, guess)
		next.Rsh(next, 1)
		if next.Cmp(guess) >= 0 {
			break
		}
		guess = next
	}
	if guess.Sign() <= 0 {
		return one
	}
	return guess
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
