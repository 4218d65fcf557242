package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// NormalizeKey folds a raw key value into its canonical lookup form:
// trim + case-fold for strings, minimal formatting for JSON numbers.
// Anything without a usable string form normalizes to "" (no key).
func NormalizeKey(v any) string {
	switch k := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(k))
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(k, 10)
	case int:
		return strconv.Itoa(k)
	default:
		return ""
	}
}

// selector is a compiled JSONPath expression.
type selector struct {
	src  string
	expr jp.Expr
}

func compileSelector(src string) (*selector, error) {
	x, err := jp.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath %q: %w", src, err)
	}
	return &selector{src: src, expr: x}, nil
}

// first returns the first match of the selector against a record, or nil.
func (s *selector) first(record any) any {
	if got := s.expr.Get(record); len(got) > 0 {
		return got[0]
	}
	return nil
}

// all returns every match of the selector against a record, in document order.
func (s *selector) all(record any) []any {
	return s.expr.Get(record)
}

// Conventional wrapper fields tried when a payload is not a bare sequence and
// the schema declares no collection field. Matches the shapes collection jobs
// actually emit (Graph-style "value", generic "items"/"records"/"data").
var wrapperFields = []string{"value", "items", "records", "data"}

// ExtractRecords pulls the record sequence out of a dataset payload.
// Accepts a bare sequence, the declared collection field, or a conventional
// wrapper. Returns ok=false when no sequence is recognizable.
func ExtractRecords(payload any, collection string) ([]any, bool) {
	switch p := payload.(type) {
	case []any:
		return p, true
	case map[string]any:
		if collection != "" {
			if seq, ok := p[collection].([]any); ok {
				return seq, true
			}
			return nil, false
		}
		for _, field := range wrapperFields {
			if seq, ok := p[field].([]any); ok {
				return seq, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// refKey resolves one relationship reference to a normalized key. A bare
// string or number is the key itself; an object yields its refField. Any
// other shape is reported as unusable so the builder can count it.
func refKey(ref any, refField string) (string, bool) {
	switch r := ref.(type) {
	case map[string]any:
		key := NormalizeKey(r[refField])
		return key, key != ""
	default:
		key := NormalizeKey(ref)
		return key, key != ""
	}
}
