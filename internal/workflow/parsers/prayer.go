package parsers

import (
	"regexp"
	"strings"
)

// minPrayerChars filters out list markers and stray fragments.
const minPrayerChars = 10

var (
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	listMarkerRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)
	themeSplitRe = regexp.MustCompile(`\s*(?::|—|--)\s+`)
)

/*
prayerPointsParser splits raw text on blank lines; every non-trivial block
becomes an ordered prayer point. A leading short noun-phrase followed by a
colon or dash ("Healing: pray for ...") becomes the theme; otherwise theme
stays empty. If nothing qualifies, the whole raw text is wrapped as one item
so the parser never yields zero records for non-empty input.
*/
type prayerPointsParser struct{}

func (prayerPointsParser) Name() string { return NamePrayerPoints }

func (prayerPointsParser) Parse(raw string, category string) Result {
	points := make([]PrayerPoint, 0, 8)
	order := 1
	for _, block := range blankLineRe.Split(raw, -1) {
		text := strings.TrimSpace(listMarkerRe.ReplaceAllString(strings.TrimSpace(block), ""))
		if len(text) < minPrayerChars {
			continue
		}
		theme, body := splitTheme(text)
		points = append(points, PrayerPoint{Order: order, PrayerText: body, Theme: theme})
		order++
	}

	if len(points) == 0 {
		return Result{
			Structured: []PrayerPoint{{Order: 1, PrayerText: strings.TrimSpace(raw)}},
			ItemCount:  1,
			Warnings:   []string{"prayer_points response had no separable lines; stored as one item"},
		}
	}
	return Result{Structured: points, ItemCount: len(points)}
}

// splitTheme peels off a short leading label ("Theme: text"). Labels longer
// than 40 chars are treated as part of the prayer itself.
func splitTheme(text string) (theme, body string) {
	loc := themeSplitRe.FindStringIndex(text)
	if loc == nil {
		return "", text
	}
	head := strings.TrimSpace(text[:loc[0]])
	rest := strings.TrimSpace(text[loc[1]:])
	if head == "" || len(head) > 40 || rest == "" {
		return "", text
	}
	return head, rest
}
