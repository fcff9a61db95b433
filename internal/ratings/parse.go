package ratings

import (
	"math"
	"strconv"
	"strings"
)

// Rating source names as reported by OMDb.
const (
	SourceIMDb           = "Internet Movie Database"
	SourceRottenTomatoes = "Rotten Tomatoes"
	SourceMetacritic     = "Metacritic"
)

// ParseValue converts a source-specific rating string to an integer on a
// 0-100 scale: IMDb "7.2/10" is 72, Rotten Tomatoes "72%" is 72, Metacritic
// "72/100" is 72. Anything unparseable or out of range reports false.
func ParseValue(source, value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0, false
	}
	switch source {
	case SourceIMDb:
		num, ok := strings.CutSuffix(value, "/10")
		if !ok {
			return 0, false
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		return inRange(int(math.Round(f * 10)))
	case SourceRottenTomatoes:
		num, ok := strings.CutSuffix(value, "%")
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, false
		}
		return inRange(n)
	case SourceMetacritic:
		num, ok := strings.CutSuffix(value, "/100")
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, false
		}
		return inRange(n)
	}
	return 0, false
}

func inRange(n int) (int, bool) {
	if n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}
