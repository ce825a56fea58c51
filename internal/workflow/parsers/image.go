package parsers

import "strings"

/*
imagePromptParser extracts a single visual-description string: the first
paragraph when the response has several, otherwise the whole text. It never
fails; the executor's image phase consumes the extracted prompt.
*/
type imagePromptParser struct{}

func (imagePromptParser) Name() string { return NameImagePrompt }

func (imagePromptParser) Parse(raw string, category string) Result {
	text := strings.TrimSpace(stripCodeFences(raw))
	if parts := blankLineRe.Split(text, 2); len(parts) > 1 {
		if first := strings.TrimSpace(parts[0]); first != "" {
			text = first
		}
	}
	return Result{
		Structured: []ImagePrompt{{Prompt: text}},
		ItemCount:  1,
	}
}
