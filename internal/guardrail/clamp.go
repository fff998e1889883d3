package guardrail

// Clamp bounds a caller-requested count. A nil or non-positive request
// falls back to def; the result is then forced into [lo, hi]. A lo below
// 1 is treated as 1, and both paths are clamped so a misconfigured
// default cannot escape hi.
func Clamp(requested *int, def, lo, hi int) int {
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}

	n := def
	if requested != nil && *requested > 0 {
		n = *requested
	}

	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return n
}
