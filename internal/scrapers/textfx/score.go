package textfx

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

type scoreRule struct {
	fragments []string
	points    int
}

// pathRules reward storage locations providers use for freshly generated files.
var pathRules = []scoreRule{
	{fragments: []string{"upload"}, points: 10},
	{fragments: []string{"/temp/", "/tmp/", "temp_", "tmp_"}, points: 15},
	{fragments: []string{"result"}, points: 20},
	{fragments: []string{"generated"}, points: 20},
	{fragments: []string{"cache"}, points: 10},
	{fragments: []string{"large", "_hd", "-hd", "full", "original", "@2x"}, points: 5},
}

var hexRunRegex = regexp.MustCompile(`[0-9a-f]{20,}`)

const (
	currentYearPoints    = 10
	previousYearPoints   = 5
	hexRunPoints         = 10
	resultContainerBonus = 10
)

// ScoreUrl ranks an image url by how likely it is to be a freshly generated artifact rather
// than a decorative or template image. It is a heuristic: a higher score is a hint, never a
// guarantee.
//
// Each rule adds its points at most once: storage path fragments, size markers, the current
// (or previous) calendar year appearing in the url and a long hexadecimal run that looks like
// a content hash.
func ScoreUrl(rawUrl string, now time.Time) int {
	lower := strings.ToLower(rawUrl)

	score := 0
	for _, rule := range pathRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(lower, fragment) {
				score += rule.points
				break
			}
		}
	}

	year := now.Year()
	if strings.Contains(lower, strconv.Itoa(year)) {
		score += currentYearPoints
	}
	if strings.Contains(lower, strconv.Itoa(year-1)) {
		score += previousYearPoints
	}

	if hexRunRegex.MatchString(lower) {
		score += hexRunPoints
	}

	return score
}
