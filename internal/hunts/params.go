package hunts

import (
	"fmt"
	"regexp"
)

// paramRef matches "${key}" references in parameter templates. Keys may be
// initial parameter names ("domain") or namespaced context keys ("dns.ip").
var paramRef = regexp.MustCompile(`\$\{([A-Za-z0-9_.-]+)\}`)

// ResolveParams resolves a step's parameter template against the merged view
// of the execution's initial parameters and accumulated context data.
// Initial parameters win ties over context keys, keeping launch-time intent
// authoritative. A template value that is exactly one reference resolves to
// the referenced value with its type preserved; mixed text interpolates as a
// string. An unresolved reference is a dispatch-time failure.
func ResolveParams(template map[string]string, initial, contextData map[string]interface{}) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(template))

	lookup := func(key string) (interface{}, bool) {
		if v, ok := initial[key]; ok {
			return v, true
		}
		if v, ok := contextData[key]; ok {
			return v, true
		}
		return nil, false
	}

	for name, value := range template {
		matches := paramRef.FindAllStringSubmatchIndex(value, -1)
		if len(matches) == 0 {
			resolved[name] = value
			continue
		}

		// Whole-value reference keeps the underlying type.
		if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(value) {
			key := value[matches[0][2]:matches[0][3]]
			v, ok := lookup(key)
			if !ok {
				return nil, fmt.Errorf("parameter %q references unresolved key %q", name, key)
			}
			resolved[name] = v
			continue
		}

		// Otherwise interpolate all references into a string.
		interpolated := paramRef.ReplaceAllStringFunc(value, func(ref string) string {
			key := ref[2 : len(ref)-1]
			if v, ok := lookup(key); ok {
				return fmt.Sprint(v)
			}
			return ref
		})
		if remaining := paramRef.FindString(interpolated); remaining != "" {
			return nil, fmt.Errorf("parameter %q references unresolved key %q", name, remaining[2:len(remaining)-1])
		}
		resolved[name] = interpolated
	}

	return resolved, nil
}
