package loop

import "strings"

// ResolveThinking maps a model id to its effective thinking effort.
// Overrides are keyed by model-family substring (e.g. "fast", "mini") and
// matched case-insensitively against the model id; the longest matching
// key wins so "gpt-mini-turbo" beats "gpt". With no match the base effort
// is returned unchanged.
func ResolveThinking(model string, base ThinkingEffort, overrides map[string]ThinkingEffort) ThinkingEffort {
	if model == "" || len(overrides) == 0 {
		return base
	}
	lower := strings.ToLower(model)
	bestLen := 0
	best := base
	for key, effort := range overrides {
		k := strings.ToLower(key)
		if k != "" && strings.Contains(lower, k) && len(k) > bestLen {
			bestLen = len(k)
			best = effort
		}
	}
	return best
}
