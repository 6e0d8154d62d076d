package utils

// Min returns the minimum of two int64 values.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Min3 returns the minimum of three int64 values.
func Min3(a, b, c int64) int64 {
	result := a
	if b < result {
		result = b
	}
	if c < result {
		result = c
	}
	return result
}
