package workflow

import (
	"github.com/google/uuid"
)

/*
Scope is the variable map threaded through one workflow run.
It is seeded with the source article fields (both dotted and underscore
aliases) and grows with "{category}_output" after each step. Values are flat
strings; dotted names like "article.content" are plain keys, not a nested
tree, so substitution stays O(1) and nothing ever walks a structure.
A Scope is private to its run and never shared across goroutines.
*/
type Scope map[string]string

// Bind sets a variable. Empty keys are ignored.
func (s Scope) Bind(key, value string) {
	if key == "" {
		return
	}
	s[key] = value
}

// Lookup resolves a variable. A dotted name that is not bound directly falls
// back to its underscore form so templates written under either convention
// resolve identically.
func (s Scope) Lookup(key string) (string, bool) {
	if v, ok := s[key]; ok {
		return v, true
	}
	if alt := underscoreAlias(key); alt != key {
		if v, ok := s[alt]; ok {
			return v, true
		}
	}
	return "", false
}

func (s Scope) Clone() Scope {
	out := make(Scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func underscoreAlias(key string) string {
	out := []byte(key)
	changed := false
	for i := range out {
		if out[i] == '.' {
			out[i] = '_'
			changed = true
		}
	}
	if !changed {
		return key
	}
	return string(out)
}

const (
	MediaTypeText  = "text"
	MediaTypeImage = "image"
)

/*
PlanStep is one immutable entry of an execution plan. The planner snapshots
the template's current version into the step at plan time, so concurrent
template edits cannot perturb an in-flight run.
*/
type PlanStep struct {
	TemplateID      uuid.UUID
	VersionID       uuid.UUID
	Name            string
	Category        string
	PromptBody      string
	SystemMessage   string
	Parameters      map[string]any
	Parser          string
	MediaType       string
	MaxOutputTokens int
}
