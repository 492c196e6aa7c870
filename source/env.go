package source

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/chanconfig/key"
)

// Environ captures environment variables as a flat Space of single-segment
// keys. Variable names that fail the key pattern are discarded, which keeps
// shell artifacts (exported functions, odd interpreter state) out of the
// value space. An empty value is an explicit nil, meaning "unset".
//
// Values that look like JSON lists or objects are decoded, so list and
// dict parameters can be overridden from the environment. Everything else
// stays a string; the declared parser performs coercion.
func Environ(environ []string) *Space {
	s := NewSpace()
	for _, kv := range environ {
		name, val, ok := strings.Cut(kv, "=")
		if !ok || !key.Pattern.MatchString(name) {
			continue
		}
		k, err := key.Make([]string{name})
		if err != nil {
			continue
		}
		if val == "" {
			s.Set(k, nil)
			continue
		}
		s.Set(k, parseEnvValue(val))
	}
	return s
}

// parseEnvValue decodes JSON list/object literals and leaves every other
// value as a string.
func parseEnvValue(val string) any {
	if strings.HasPrefix(val, "[") || strings.HasPrefix(val, "{") {
		if gjson.Valid(val) {
			return normalizeJSON(gjson.Parse(val).Value())
		}
	}
	return val
}

// normalizeJSON converts integral float64 values (the only number type
// JSON decoding produces) to int64, recursively, to match the value shapes
// produced by script modules and TOML files.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeJSON(e)
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeJSON(e)
		}
		return t
	default:
		return v
	}
}
