package placeholder

import (
	"testing"

	"github.com/newsforge/newsforge-backend/internal/workflow"
)

func TestResolveBasicSubstitution(t *testing.T) {
	scope := workflow.Scope{"article_title": "Flood Warning", "city": "Lagos"}

	out, warnings := Resolve("News: {article_title} in {city}.", scope)
	if out != "News: Flood Warning in Lagos." {
		t.Fatalf("unexpected output: %q", out)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestResolveDottedAlias(t *testing.T) {
	scope := workflow.Scope{"article_title": "Flood Warning"}

	out, warnings := Resolve("Title: {article.title}", scope)
	if out != "Title: Flood Warning" {
		t.Fatalf("dotted name did not fall back to underscore form: %q", out)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestResolveUnresolvedPlaceholder(t *testing.T) {
	out, warnings := Resolve("Hello {missing_var}!", workflow.Scope{})
	if out != "Hello !" {
		t.Fatalf("unresolved token should substitute empty, got %q", out)
	}
	if len(warnings) != 1 || warnings[0] != "unresolved placeholder: missing_var" {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestResolveEscapedBrace(t *testing.T) {
	scope := workflow.Scope{"x": "1"}

	out, warnings := Resolve(`JSON example: {{"key": "value"} and {x}`, scope)
	if out != `JSON example: {"key": "value"} and 1` {
		t.Fatalf("escape handling wrong: %q", out)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestResolveNonRecursive(t *testing.T) {
	scope := workflow.Scope{"a": "{b}", "b": "deep"}

	out, _ := Resolve("{a}", scope)
	if out != "{b}" {
		t.Fatalf("substituted content must not be rescanned, got %q", out)
	}
}

func TestResolveInvalidTokensPassThrough(t *testing.T) {
	scope := workflow.Scope{"x": "1"}

	cases := map[string]string{
		"{ }":      "{ }",
		"{1bad}":   "{1bad}",
		"{x":       "{x",
		"plain":    "plain",
		"{x}{x}":   "11",
		"a{}b":     "a{}b",
		"{has-no}": "{has-no}",
	}
	for in, want := range cases {
		out, _ := Resolve(in, scope)
		if out != want {
			t.Fatalf("Resolve(%q) = %q, want %q", in, out, want)
		}
	}
}

func TestResolveChainedOutputKey(t *testing.T) {
	scope := workflow.Scope{}
	scope.Bind("blog_post_output", "the post body")

	out, warnings := Resolve("Summarize: {blog_post_output}", scope)
	if out != "Summarize: the post body" {
		t.Fatalf("chained key lookup failed: %q", out)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}
