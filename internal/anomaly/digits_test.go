package anomaly

import "testing"

func TestIsRoundNumber(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		digitCount int
		want       bool
	}{
		{"FiveTrailingZeros", 300000, 5, true},
		{"OffByOne", 300001, 5, false},
		{"LeadingDigitInWindow", 50000, 5, false},
		{"ExactPowerOfTen", 100000, 5, true},
		{"ThreeZeros", 125000, 3, true},
		{"FourthDigitNonZero", 125000, 4, false},
		{"Negative", -300000, 5, true},
		{"Zero", 0, 1, true},
		{"ShorterThanWindow", 42, 5, false},
		{"DecimalPointInWindow", 1234.50, 2, false},
		{"WholeDecimalRendersShort", 500.00, 2, true},
		{"ZeroDigitCount", 300000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRoundNumber(tt.amount, tt.digitCount); got != tt.want {
				t.Errorf("IsRoundNumber(%v, %d) = %v, want %v", tt.amount, tt.digitCount, got, tt.want)
			}
		})
	}
}

func TestIsRepeatingNumber(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		digitCount int
		want       bool
	}{
		{"RepeatingFives", 555555, 4, true},
		{"BrokenRun", 555554, 4, false},
		{"FullRepeat", 111111, 6, true},
		{"TailOnly", 1222, 3, true},
		{"Distinct", 1234, 4, false},
		{"RepeatAcrossDecimal", 5.5, 2, false},
		{"CentsRepeat", 77.77, 2, true},
		{"ShorterThanWindow", 7, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRepeatingNumber(tt.amount, tt.digitCount); got != tt.want {
				t.Errorf("IsRepeatingNumber(%v, %d) = %v, want %v", tt.amount, tt.digitCount, got, tt.want)
			}
		})
	}
}
