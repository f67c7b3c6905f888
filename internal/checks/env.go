package checks

import (
	"sort"
	"strings"
)

// MergeEnv returns base with overrides applied. Existing keys are replaced
// in place; new keys are appended in sorted order.
func MergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	applied := make(map[string]bool, len(overrides))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			if !applied[key] {
				out = append(out, key+"="+v)
				applied[key] = true
			}
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		if !applied[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}
