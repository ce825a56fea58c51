package parsers

import "encoding/json"

/*
structuredJSONParser parses the response as JSON and returns the object
as-is. A non-object root (array, scalar) or a parse failure records a warning
and degrades to the generic result so downstream chaining still has text to
work with.
*/
type structuredJSONParser struct{}

func (structuredJSONParser) Name() string { return NameStructuredJSON }

func (structuredJSONParser) Parse(raw string, category string) Result {
	cleaned := stripCodeFences(raw)
	var decoded any
	err := json.Unmarshal([]byte(cleaned), &decoded)
	if err != nil {
		err = json.Unmarshal([]byte(jsonSlice(cleaned)), &decoded)
	}

	if err == nil {
		if obj, ok := decoded.(map[string]any); ok {
			return Result{Structured: obj, ItemCount: 1}
		}
		generic := genericParser{}.Parse(raw, category)
		generic.Warnings = append(generic.Warnings, "structured_json root is not an object; stored raw text")
		return generic
	}

	generic := genericParser{}.Parse(raw, category)
	generic.Warnings = append(generic.Warnings, "structured_json parse failed: "+firstNChars(err.Error(), 200))
	return generic
}
