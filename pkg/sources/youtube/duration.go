package youtube

import (
	"fmt"
	"regexp"
	"strconv"
)

// shortMaxSeconds is the classification boundary between shorts and regular
// videos. A video of exactly 60 seconds counts as a short.
const shortMaxSeconds = 60

// Derived content kinds.
const (
	KindVideo = "video"
	KindShort = "short"
)

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO-8601 video duration ("PT1M30S") into
// total seconds. Date components never occur in video durations.
func parseISODuration(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	var total int64
	for i, mult := range []int64{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed duration %q: %w", s, err)
		}
		total += v * mult
	}
	return total, nil
}

// classify derives the content kind from the duration in seconds. The
// boundary itself counts as the shorter classification.
func classify(durationSeconds int64) string {
	if durationSeconds <= shortMaxSeconds {
		return KindShort
	}
	return KindVideo
}
