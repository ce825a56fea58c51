package parsers

import (
	"encoding/json"
	"strings"
)

// socialFallbackChars bounds the text kept when the model returns non-JSON.
const socialFallbackChars = 500

// socialPlatforms fixes the record order so parsing stays deterministic
// regardless of JSON key iteration order.
var socialPlatforms = []string{"facebook", "instagram", "linkedin", "twitter"}

/*
socialMediaParser expects a JSON object keyed by platform, each value holding
{text, hashtags[]}:

	{"facebook": {"text": "...", "hashtags": ["#a"]}, "twitter": {...}}

Malformed input falls back to a single {platform:"general"} record wrapping
the first N characters of the raw text, with a warning. The fallback counts
as a successful parse so the run keeps chaining.
*/
type socialMediaParser struct{}

func (socialMediaParser) Name() string { return NameSocialMedia }

func (socialMediaParser) Parse(raw string, category string) Result {
	type platformPost struct {
		Text     string   `json:"text"`
		Hashtags []string `json:"hashtags"`
	}

	cleaned := stripCodeFences(raw)
	var decoded map[string]platformPost
	err := json.Unmarshal([]byte(cleaned), &decoded)
	if err != nil {
		err = json.Unmarshal([]byte(jsonSlice(cleaned)), &decoded)
	}

	if err == nil {
		posts := make([]SocialPost, 0, len(decoded))
		order := 1
		for _, platform := range socialPlatforms {
			post, ok := decoded[platform]
			if !ok || strings.TrimSpace(post.Text) == "" {
				continue
			}
			hashtags := post.Hashtags
			if hashtags == nil {
				hashtags = []string{}
			}
			posts = append(posts, SocialPost{
				Platform: platform,
				Text:     strings.TrimSpace(post.Text),
				Hashtags: hashtags,
				Order:    order,
			})
			order++
		}
		if len(posts) > 0 {
			return Result{Structured: posts, ItemCount: len(posts)}
		}
	}

	return Result{
		Structured: []SocialPost{{
			Platform: "general",
			Text:     firstNChars(raw, socialFallbackChars),
			Hashtags: []string{},
			Order:    1,
		}},
		ItemCount: 1,
		Warnings:  []string{"social_media response was not platform JSON; stored as general post"},
	}
}
