package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const maxRuntime = 65535

var (
	hoursMinutesPattern = regexp.MustCompile(`(?i)^\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*(?:min|mn|m)?)?\s*$`)
	isoDurationPattern  = regexp.MustCompile(`(?i)^PT(?:(\d+)H)?(?:(\d+)M)?(?:\d+S)?$`)
)

// Runtime converts the upstream runtime to minutes. Accepted forms are a bare
// number of minutes, "1h 59min" and ISO-8601 "PT1H59M". Anything else, or an
// out-of-range value, yields 0 (unknown).
func Runtime(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var minutes int
	if err := json.Unmarshal(raw, &minutes); err == nil {
		return clampRuntime(minutes)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	return clampRuntime(parseRuntime(s))
}

func parseRuntime(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if m := isoDurationPattern.FindStringSubmatch(s); m != nil {
		return atoi(m[1])*60 + atoi(m[2])
	}
	if m := hoursMinutesPattern.FindStringSubmatch(s); m != nil {
		return atoi(m[1])*60 + atoi(m[2])
	}
	return 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func clampRuntime(minutes int) int {
	if minutes <= 0 || minutes > maxRuntime {
		return 0
	}
	return minutes
}
