package workflow

import (
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.-]+)\s*\}\}`)

// Expand substitutes {{name}} placeholders in s from vars and returns the
// names it could not resolve. Unknown placeholders are left literal so the
// caller can report them verbatim.
func Expand(s string, vars map[string]string) (string, []string) {
	missing := map[string]struct{}{}
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := vars[name]; ok {
			return v
		}
		missing[name] = struct{}{}
		return match
	})
	if len(missing) == 0 {
		return out, nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return out, names
}

// ExpandParams expands every value of a stage's parameter map. Any unresolved
// placeholder fails the whole map; a stage never runs on half-templated
// input.
func ExpandParams(profile, stage string, params, vars map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for k, v := range params {
		expanded, missing := Expand(v, vars)
		if len(missing) > 0 {
			return nil, &ConfigError{
				Profile: profile,
				Reason: "stage " + stage + ": unresolved placeholder " +
					strings.Join(missing, ", ") + " in param " + k,
			}
		}
		out[k] = expanded
	}
	return out, nil
}
