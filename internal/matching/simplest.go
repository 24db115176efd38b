package matching

import (
	"strconv"
	"strings"
)

// variantPriority ranks a label for tie-breaking among a boss's matches.
func variantPriority(label string) (int, int) {
	if rest, ok := strings.CutPrefix(label, "starcut_n="); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return 0, 9999
		}
		return 0, n
	}
	switch label {
	case "circlecut_inner":
		return 1, 0
	case "circlecut_outer":
		return 2, 0
	}
	return 3, 9999
}

// SimplestMatch picks the match from the simplest variant, breaking ties by the
// summed axis error. It returns false for an empty slice.
func SimplestMatch(matches []BossMatch) (BossMatch, bool) {
	if len(matches) == 0 {
		return BossMatch{}, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if simplerThan(m, best) {
			best = m
		}
	}
	return best, true
}

func simplerThan(a, b BossMatch) bool {
	ag, an := variantPriority(a.VariantLabel)
	bg, bn := variantPriority(b.VariantLabel)
	if ag != bg {
		return ag < bg
	}
	if an != bn {
		return an < bn
	}
	return a.XError+a.YError < b.XError+b.YError
}
