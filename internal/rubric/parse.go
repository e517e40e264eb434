package rubric

import (
	"regexp"
	"strconv"
	"strings"
)

// The judge is a schema-free text generator: a missing or malformed score
// line is a normal outcome, so the extractors return nil instead of erroring.

// ExtractScore returns the first captured score in [0,100], or nil when the
// pattern is absent, the capture does not parse, or the value is out of
// range.
func ExtractScore(text string, pattern *regexp.Regexp) *int {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > 100 {
		return nil
	}
	return &n
}

// ExtractScoreFloat is ExtractScore for the float-valued test scores.
func ExtractScoreFloat(text string, pattern *regexp.Regexp) *float64 {
	m := pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil || f < 0 || f > 100 {
		return nil
	}
	return &f
}

// SplitVariants extracts up to max "---"-delimited variant blocks from a
// judge response. A "VARIANT" prefix starts a new block; "---" toggles
// capture inside a block; lines outside capture are discarded. A block left
// open at end-of-input is still emitted. Fewer recognizable blocks than max
// simply yields a shorter slice; this never fails.
func SplitVariants(text string, max int) []string {
	var variants []string
	var current []string
	opened := false
	capture := false

	flush := func() {
		if !opened {
			return
		}
		if v := strings.TrimSpace(strings.Join(current, "\n")); v != "" {
			variants = append(variants, v)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "VARIANT"):
			flush()
			current = current[:0]
			opened = true
			capture = false
		case strings.TrimSpace(line) == "---":
			capture = !capture
		case capture:
			current = append(current, line)
		}
	}
	flush()

	if len(variants) > max {
		variants = variants[:max]
	}
	return variants
}
