package mathx

// FloorDiv divides rounding toward negative infinity. b > 0.
func FloorDiv(a, b int) int {
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

// Mod returns a modulo b in [0, b). b > 0.
func Mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// CeilDiv divides rounding toward positive infinity. a >= 0, b > 0.
func CeilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
