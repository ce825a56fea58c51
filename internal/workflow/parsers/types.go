package parsers

// Typed artifact variants, one per built-in category. They serialize to JSON
// only at the storage boundary (artifact.structured).

type GenericItem struct {
	Text  string `json:"text"`
	Order int    `json:"order"`
}

type SocialPost struct {
	Platform string   `json:"platform"`
	Text     string   `json:"text"`
	Hashtags []string `json:"hashtags"`
	Order    int      `json:"order"`
}

type VideoScript struct {
	Title             string   `json:"title"`
	Script            string   `json:"script"`
	Duration          int      `json:"duration"`
	VisualSuggestions []string `json:"visual_suggestions"`
}

type PrayerPoint struct {
	Order      int    `json:"order"`
	PrayerText string `json:"prayer_text"`
	Theme      string `json:"theme,omitempty"`
}

type ImagePrompt struct {
	Prompt string `json:"prompt"`
}
