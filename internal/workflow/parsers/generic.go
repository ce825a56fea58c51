package parsers

import "strings"

// genericParser wraps the trimmed raw text in a single record. It never fails.
type genericParser struct{}

func (genericParser) Name() string { return NameGeneric }

func (genericParser) Parse(raw string, category string) Result {
	return Result{
		Structured: []GenericItem{{Text: strings.TrimSpace(raw), Order: 1}},
		ItemCount:  1,
	}
}
