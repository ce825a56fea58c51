package parsers

import (
	"encoding/json"
	"strings"
)

/*
videoScriptParser expects JSON {title, script, duration, visualSuggestions[]}
and produces one script record. Malformed input falls back to wrapping the
raw text as the script with a 60 second default duration.
*/
type videoScriptParser struct{}

func (videoScriptParser) Name() string { return NameVideoScript }

func (videoScriptParser) Parse(raw string, category string) Result {
	type wire struct {
		Title             string      `json:"title"`
		Script            string      `json:"script"`
		Duration          json.Number `json:"duration"`
		VisualSuggestions []string    `json:"visualSuggestions"`
	}

	cleaned := stripCodeFences(raw)
	var decoded wire
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	err := dec.Decode(&decoded)
	if err != nil {
		dec = json.NewDecoder(strings.NewReader(jsonSlice(cleaned)))
		dec.UseNumber()
		err = dec.Decode(&decoded)
	}

	if err == nil && strings.TrimSpace(decoded.Script) != "" {
		duration := 60
		if d, convErr := decoded.Duration.Int64(); convErr == nil && d > 0 {
			duration = int(d)
		} else if f, convErr := decoded.Duration.Float64(); convErr == nil && f > 0 {
			duration = int(f)
		}
		suggestions := decoded.VisualSuggestions
		if suggestions == nil {
			suggestions = []string{}
		}
		title := strings.TrimSpace(decoded.Title)
		if title == "" {
			title = "Video Script"
		}
		return Result{
			Structured: []VideoScript{{
				Title:             title,
				Script:            strings.TrimSpace(decoded.Script),
				Duration:          duration,
				VisualSuggestions: suggestions,
			}},
			ItemCount: 1,
		}
	}

	return Result{
		Structured: []VideoScript{{
			Title:             "Video Script",
			Script:            strings.TrimSpace(raw),
			Duration:          60,
			VisualSuggestions: []string{},
		}},
		ItemCount: 1,
		Warnings:  []string{"video_script response was not structured JSON; stored raw text as script"},
	}
}
