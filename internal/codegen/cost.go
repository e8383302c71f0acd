package codegen

import "strings"

// costPerToken stores USD pricing per 1K tokens: [input, output].
var costPerToken = map[string][2]float64{
	// Google
	"gemini-2.5-flash": {0.00015, 0.0006},
	"gemini-2.5-pro":   {0.00125, 0.01},

	// OpenAI
	"gpt-4o":      {0.0025, 0.01},
	"gpt-4o-mini": {0.00015, 0.0006},
	"gpt-4.1":     {0.002, 0.008},

	// Anthropic
	"claude-sonnet-4-20250514": {0.003, 0.015},
	"claude-opus-4-20250514":   {0.015, 0.075},
}

// CalculateCost estimates the USD cost of a call. Dated or preview model
// names fall back to their family's price; unknown and local models cost 0.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	prices, ok := costPerToken[model]
	if !ok {
		var best string
		for name := range costPerToken {
			if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
				best = name
			}
		}
		if best == "" {
			return 0
		}
		prices = costPerToken[best]
	}
	return float64(inputTokens)/1000.0*prices[0] + float64(outputTokens)/1000.0*prices[1]
}
