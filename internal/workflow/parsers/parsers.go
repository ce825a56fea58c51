package parsers

import (
	"fmt"
	"sync"
)

// Result is what every parser returns. ItemCount is the number of discrete
// records produced; zero items means the parse failed and the executor marks
// the step failed.
type Result struct {
	Structured any
	ItemCount  int
	Warnings   []string
}

// Parser turns raw LLM text into a category's structured artifact.
// Implementations must be pure and deterministic: the same text parsed twice
// yields equal results.
type Parser interface {
	Name() string
	Parse(raw string, category string) Result
}

const (
	NameGeneric        = "generic"
	NameSocialMedia    = "social_media"
	NameVideoScript    = "video_script"
	NamePrayerPoints   = "prayer_points"
	NameStructuredJSON = "structured_json"
	NameImagePrompt    = "image_prompt"
)

// Registry maps parser names to implementations. It is exposed as data so a
// new category plugs in by registering a parser, without touching the executor.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Default returns a registry seeded with the built-in parsers.
func Default() *Registry {
	r := NewRegistry()
	for _, p := range []Parser{
		genericParser{},
		socialMediaParser{},
		videoScriptParser{},
		prayerPointsParser{},
		structuredJSONParser{},
		imagePromptParser{},
	} {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(p Parser) error {
	if p == nil {
		return fmt.Errorf("nil parser")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("parser Name() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[name]; exists {
		return fmt.Errorf("parser already registered for name=%s", name)
	}
	r.parsers[name] = p
	return nil
}

// Get returns the parser for name, falling back to generic when unknown.
func (r *Registry) Get(name string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.parsers[name]; ok {
		return p
	}
	if p, ok := r.parsers[NameGeneric]; ok {
		return p
	}
	return genericParser{}
}
