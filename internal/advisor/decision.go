package advisor

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Recommendation values the executor understands.
const (
	RecommendationBuy  = "BUY"
	RecommendationSell = "SELL"
	RecommendationHold = "HOLD"
)

// FlexFloat decodes a JSON number or a numeric string. Anything else
// decodes to zero; provider output is untrusted.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// FlexString decodes a JSON string or number into a string. The sizing
// calculator only honors "%"-suffixed strings, so a bare number passes
// through as its decimal text and falls back to the default there.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*s = ""
			return nil
		}
		*s = FlexString(str)
		return nil
	}
	*s = FlexString(raw)
	return nil
}

// Decision is the structured trading recommendation parsed from the
// provider reply. All fields beyond Recommendation are optional.
type Decision struct {
	Recommendation         string     `json:"recommendation"`
	TargetEntryPrice       FlexFloat  `json:"target_entry_price"`
	EntryPrice             FlexFloat  `json:"entry_price"`
	StopLoss               FlexFloat  `json:"stop_loss"`
	TakeProfit             FlexFloat  `json:"take_profit"`
	PositionSizeSuggestion FlexString `json:"position_size_suggestion"`
	RiskLevel              string     `json:"risk_level"`
	Reasoning              string     `json:"reasoning"`
}

// DesiredEntryPrice returns the target entry price, falling back to the
// plain entry price field.
func (d Decision) DesiredEntryPrice() float64 {
	if d.TargetEntryPrice > 0 {
		return float64(d.TargetEntryPrice)
	}
	return float64(d.EntryPrice)
}

// markdown fences around a JSON payload, tolerated in provider output
var codeBlockRegex = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// stripMarkdownCodeBlock removes a wrapping markdown code fence if present.
func stripMarkdownCodeBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if matches := codeBlockRegex.FindStringSubmatch(trimmed); len(matches) == 2 {
		return strings.TrimSpace(matches[1])
	}
	return trimmed
}

// ParseDecision decodes a provider reply into a Decision. A reply that
// cannot be parsed becomes a HOLD decision, never an error: one bad
// completion must not fail the cycle.
func ParseDecision(content string) Decision {
	cleaned := stripMarkdownCodeBlock(content)

	var decision Decision
	if err := json.Unmarshal([]byte(cleaned), &decision); err != nil {
		return Decision{
			Recommendation: RecommendationHold,
			Reasoning:      "Failed to parse AI response",
		}
	}

	// A parseable object with a missing recommendation stays empty; the
	// executor reports it as skipped rather than defaulting to HOLD.
	decision.Recommendation = strings.ToUpper(strings.TrimSpace(decision.Recommendation))
	return decision
}
