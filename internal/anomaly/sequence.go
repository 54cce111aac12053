package anomaly

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SequenceGap describes one hole in a numeric identifier sequence.
type SequenceGap struct {
	After   string   `json:"after"`   // last identifier present before the gap
	Before  string   `json:"before"`  // first identifier present after the gap
	Missing []string `json:"missing"` // identifiers absent in between
}

// SequenceGaps finds the holes in a document number sequence.
// Identifiers must start with prefix and continue with digits only;
// anything else is ignored. Duplicate numbers collapse to one
// occurrence. Missing identifiers are rendered with the zero-padding
// of the gap's lower bound, so INV001..INV004 reports INV003 rather
// than INV3.
func SequenceGaps(ids []string, prefix string) []SequenceGap {
	type entry struct {
		raw   string
		width int
	}
	seen := make(map[int64]entry)

	for _, id := range ids {
		s := strings.TrimSpace(id)
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		suffix := s[len(prefix):]
		if suffix == "" || !allDigits(suffix) {
			continue
		}
		n, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		if _, dup := seen[n]; !dup {
			seen[n] = entry{raw: s, width: len(suffix)}
		}
	}

	if len(seen) < 2 {
		return nil
	}

	nums := make([]int64, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })

	var gaps []SequenceGap
	for i := 1; i < len(nums); i++ {
		prev, cur := nums[i-1], nums[i]
		if cur-prev <= 1 {
			continue
		}
		lower := seen[prev]
		missing := make([]string, 0, cur-prev-1)
		for n := prev + 1; n < cur; n++ {
			missing = append(missing, fmt.Sprintf("%s%0*d", prefix, lower.width, n))
		}
		gaps = append(gaps, SequenceGap{
			After:   lower.raw,
			Before:  seen[cur].raw,
			Missing: missing,
		})
	}
	return gaps
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
