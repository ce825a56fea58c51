package placeholder

import (
	"regexp"
	"strings"

	"github.com/newsforge/newsforge-backend/internal/workflow"
)

var tokenRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

/*
Resolve substitutes {name} and {a.b.c} tokens in text from the scope.
Rules:
  - "{{" escapes to a literal "{".
  - An unknown token substitutes to the empty string and is reported in the
    returned warnings as "unresolved placeholder: X".
  - Substitution is non-recursive: substituted content is never rescanned.
  - Text that looks like a brace but is not a valid token ("{ }", "{1x}",
    an unclosed "{") passes through untouched.

Resolve never fails; warnings accumulate on the step result.
*/
func Resolve(text string, scope workflow.Scope) (string, []string) {
	var b strings.Builder
	b.Grow(len(text))
	var warnings []string

	for i := 0; i < len(text); {
		c := text[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(text) && text[i+1] == '{' {
			b.WriteByte('{')
			i += 2
			continue
		}
		end := strings.IndexByte(text[i+1:], '}')
		if end < 0 {
			b.WriteString(text[i:])
			break
		}
		name := text[i+1 : i+1+end]
		if !tokenRe.MatchString(name) {
			b.WriteByte('{')
			i++
			continue
		}
		val, ok := scope.Lookup(name)
		if !ok {
			warnings = append(warnings, "unresolved placeholder: "+name)
		}
		b.WriteString(val)
		i += end + 2
	}
	return b.String(), warnings
}
