package component

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// envRefPattern matches values that are a single environment reference. Only
// whole-value references are treated as indirection; "$" elsewhere in a value
// is passed through untouched so credentials containing "$" survive.
var envRefPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// ResolveEnvRef reports whether s is a "${VAR}" environment reference and, if
// so, resolves it against the process environment.
func ResolveEnvRef(s string) (value string, isRef, set bool) {
	m := envRefPattern.FindStringSubmatch(s)
	if m == nil {
		return s, false, false
	}
	value, set = os.LookupEnv(m[1])
	return value, true, set
}

// renderValue converts a configuration value to its environment string form.
// Mappings and sequences are JSON-encoded; scalars use their natural string
// form. The second return is false when the value is a reference to an unset
// environment variable and should be omitted.
func renderValue(v any) (string, bool, error) {
	switch val := v.(type) {
	case string:
		resolved, isRef, set := ResolveEnvRef(val)
		if isRef && !set {
			return "", false, nil
		}
		return resolved, true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	case int:
		return strconv.Itoa(val), true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	case uint64:
		return strconv.FormatUint(val, 10), true, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true, nil
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return "", false, fmt.Errorf("encode value: %w", err)
		}
		return string(data), true, nil
	default:
		return fmt.Sprintf("%v", val), true, nil
	}
}
