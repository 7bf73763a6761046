package connector

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/getflowline/flowline/common/logger"
)

var (
	placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	wholePlaceholder   = regexp.MustCompile(`^\$\{([^}]+)\}$`)
)

// Resolver substitutes ${path} placeholders with values from the
// execution context. Paths are gjson expressions, so both flat keys
// ("${user_id}") and dotted lookups ("${payload.user_id}",
// "${step1.status_code}") work. A value that is exactly one placeholder
// keeps the looked-up type; placeholders embedded in longer strings are
// stringified. Unresolved paths stay literal.
type Resolver struct {
	log *logger.Logger
}

// NewResolver creates a resolver
func NewResolver(log *logger.Logger) *Resolver {
	return &Resolver{log: log}
}

// Resolve walks value recursively, substituting placeholders in strings,
// map values and slice elements
func (r *Resolver) Resolve(value any, execCtx Context) any {
	ctxJSON, err := json.Marshal(map[string]any(execCtx))
	if err != nil {
		r.log.Warn("failed to encode execution context", "error", err)
		return value
	}
	return r.resolveValue(value, ctxJSON)
}

// ResolveString substitutes placeholders and always yields a string,
// JSON-encoding any non-string lookup. Used for URLs and header values.
func (r *Resolver) ResolveString(s string, execCtx Context) string {
	resolved := r.Resolve(s, execCtx)
	if str, ok := resolved.(string); ok {
		return str
	}
	return stringify(resolved)
}

func (r *Resolver) resolveValue(value any, ctxJSON []byte) any {
	switch v := value.(type) {
	case string:
		return r.resolveString(v, ctxJSON)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for key, item := range v {
			resolved[key] = r.resolveValue(item, ctxJSON)
		}
		return resolved
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			resolved[i] = r.resolveValue(item, ctxJSON)
		}
		return resolved
	default:
		// Primitives pass through
		return value
	}
}

func (r *Resolver) resolveString(s string, ctxJSON []byte) any {
	// A string that is exactly one placeholder keeps the value's type
	if match := wholePlaceholder.FindStringSubmatch(s); match != nil {
		value, ok := r.lookup(match[1], ctxJSON)
		if !ok {
			r.log.Warn("unresolved placeholder", "path", match[1])
			return s
		}
		return value
	}

	if !strings.Contains(s, "${") {
		return s
	}

	// Interpolate placeholders embedded in a longer string
	return placeholderPattern.ReplaceAllStringFunc(s, func(placeholder string) string {
		path := placeholder[2 : len(placeholder)-1]
		value, ok := r.lookup(path, ctxJSON)
		if !ok {
			r.log.Warn("unresolved placeholder", "path", path)
			return placeholder
		}
		if str, ok := value.(string); ok {
			return str
		}
		return stringify(value)
	})
}

func (r *Resolver) lookup(path string, ctxJSON []byte) (any, bool) {
	result := gjson.GetBytes(ctxJSON, path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func stringify(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(encoded)
}
