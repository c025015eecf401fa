package llm

import "strings"

// ModelCost is a model's price in USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the USD cost of one usage record.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// LookupCost returns the price for a model ID as stored on llm_request
// events, or nil if unknown. OpenRouter IDs carry a vendor prefix
// ("openai/gpt-4o-mini") and fall back to the bare model's price.
// Dated snapshots ("gpt-4o-mini-2024-07-18") match their base entry.
func LookupCost(modelID string) *ModelCost {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if c, ok := modelCosts[id]; ok {
		return &c
	}
	if _, bare, ok := strings.Cut(id, "/"); ok {
		id = strings.TrimSuffix(bare, ":free")
		if c, ok := modelCosts[id]; ok {
			return &c
		}
	}
	best := ""
	for name := range modelCosts {
		if strings.HasPrefix(id, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		c := modelCosts[best]
		return &c
	}
	return nil
}

// modelCosts covers the models the bot is configured with by default and
// their common alternatives. Prices from the vendors' published lists.
var modelCosts = map[string]ModelCost{
	"claude-haiku-4-5":          {1, 5},
	"claude-haiku-4-5-20251001": {1, 5},
	"claude-3-5-haiku":          {0.8, 4},
	"claude-sonnet-4":           {3, 15},
	"claude-sonnet-4-20250514":  {3, 15},
	"claude-sonnet-4-5":         {3, 15},

	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-5-mini":   {0.25, 2},

	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-pro":        {1.25, 10},

	// OpenRouter-only models.
	"mistralai/mistral-small-3.2-24b-instruct": {0.05, 0.1},
	"meta-llama/llama-3.3-70b-instruct":        {0.13, 0.4},
}
