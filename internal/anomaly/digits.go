package anomaly

import (
	"math"
	"strconv"
	"strings"
)

// trailingDigits returns the last n characters of the shortest decimal
// rendering of |amount|. ok=false when the rendering is shorter than n
// or a decimal point falls inside the window; such amounts never match
// a digit pattern.
func trailingDigits(amount float64, n int) (string, bool) {
	if n <= 0 {
		return "", false
	}
	s := strconv.FormatFloat(math.Abs(amount), 'f', -1, 64)
	if len(s) < n {
		return "", false
	}
	tail := s[len(s)-n:]
	if strings.Contains(tail, ".") {
		return "", false
	}
	return tail, true
}

// IsRoundNumber reports whether the last digitCount digits of the
// amount are all zero: 300000 matches with digitCount 5, 300001 does
// not, and 1234.5 never matches because the decimal point breaks the
// digit run.
func IsRoundNumber(amount float64, digitCount int) bool {
	tail, ok := trailingDigits(amount, digitCount)
	if !ok {
		return false
	}
	for i := 0; i < len(tail); i++ {
		if tail[i] != '0' {
			return false
		}
	}
	return true
}

// IsRepeatingNumber reports whether the last digitCount digits of the
// amount are all the same digit, e.g. 555555 with digitCount 4.
func IsRepeatingNumber(amount float64, digitCount int) bool {
	tail, ok := trailingDigits(amount, digitCount)
	if !ok {
		return false
	}
	for i := 1; i < len(tail); i++ {
		if tail[i] != tail[0] {
			return false
		}
	}
	return true
}
