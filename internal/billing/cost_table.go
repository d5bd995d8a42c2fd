// Package billing meters token usage against provider costs, enforces the
// trial/subscription access gate, and records the append-only transaction
// ledger in internal/identitystore.
package billing

import "strings"

// ProviderCost is a provider/model's published price per 1M tokens.
type ProviderCost struct {
	Name           string
	Model          string
	InputPer1M     float64
	OutputPer1M    float64
}

// defaultProviderCosts mirrors the reference cost table: Groq's free tier,
// DeepSeek V3, Gemini 2.0 Flash / 1.5 Flash, OpenRouter's Kimi route,
// Claude 3.5 Sonnet / 3 Haiku, and GPT-4o / 4o-mini. Keyed "provider:model".
func defaultProviderCosts() map[string]ProviderCost {
	return map[string]ProviderCost{
		"groq:llama-3.3-70b": {"groq", "llama-3.3-70b-versatile", 0, 0},
		"groq:llama-3.1-8b":  {"groq", "llama-3.1-8b-instant", 0, 0},

		"deepseek:v3": {"deepseek", "deepseek-chat", 0.14, 0.28},

		"google:gemini-2.0-flash": {"google", "gemini-2.0-flash-exp", 0.075, 0.30},
		"google:gemini-1.5-flash": {"google", "gemini-1.5-flash", 0.075, 0.30},

		"openrouter:kimi-k2.5": {"openrouter", "moonshotai/kimi-k2.5", 0.50, 0.50},

		"anthropic:claude-3.5-sonnet": {"anthropic", "claude-3-5-sonnet-20241022", 3.0, 15.0},
		"anthropic:claude-3-haiku":    {"anthropic", "claude-3-haiku-20240307", 0.25, 1.25},

		"openai:gpt-4o-mini": {"openai", "gpt-4o-mini", 0.15, 0.60},
		"openai:gpt-4o":      {"openai", "gpt-4o", 2.50, 10.0},
	}
}

// lookupCost resolves a provider/model pair against the table: exact
// "provider:model" match first, then any entry whose Name equals provider
// or whose own key is a prefix match on "provider:", then ok=false for an
// unrecognized provider entirely.
func lookupCost(costs map[string]ProviderCost, provider, model string) (ProviderCost, bool) {
	key := provider + ":" + model
	if c, ok := costs[key]; ok {
		return c, true
	}
	for k, c := range costs {
		if c.Name == provider || strings.HasPrefix(k, provider+":") {
			return c, true
		}
	}
	return ProviderCost{}, false
}
