package ffmpeg

import (
	"regexp"
	"strconv"
	"time"
)

// timePattern matches the time= marker ffmpeg prints on its stats lines,
// e.g. "time=00:03:21.45". A value of N/A appears before the first frame.
var timePattern = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2})(?:\.(\d+))?`)

// parseElapsed extracts the most recent elapsed-media-time marker from one
// diagnostics line. Returns false when the line carries no usable marker.
func parseElapsed(line string) (time.Duration, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	elapsed := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	if m[4] != "" {
		if frac, err := strconv.ParseFloat("0."+m[4], 64); err == nil {
			elapsed += time.Duration(frac * float64(time.Second))
		}
	}
	return elapsed, true
}
