package advisor

import (
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantRec  string
		wantSize string
	}{
		{
			name:     "plain json",
			content:  `{"recommendation":"BUY","target_entry_price":0.21,"position_size_suggestion":"3%"}`,
			wantRec:  "BUY",
			wantSize: "3%",
		},
		{
			name:    "lowercase recommendation normalized",
			content: `{"recommendation":"sell"}`,
			wantRec: "SELL",
		},
		{
			name:    "fenced json block",
			content: "```json\n{\"recommendation\": \"HOLD\"}\n```",
			wantRec: "HOLD",
		},
		{
			name:    "fence without language tag",
			content: "```\n{\"recommendation\": \"BUY\"}\n```",
			wantRec: "BUY",
		},
		{
			name:    "malformed json defaults to hold",
			content: "I think you should probably buy here.",
			wantRec: "HOLD",
		},
		{
			name:    "empty content defaults to hold",
			content: "",
			wantRec: "HOLD",
		},
		{
			name:    "missing recommendation stays empty",
			content: `{"reasoning":"mixed signals"}`,
			wantRec: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDecision(tt.content)
			if got.Recommendation != tt.wantRec {
				t.Errorf("Recommendation = %q, want %q", got.Recommendation, tt.wantRec)
			}
			if tt.wantSize != "" && string(got.PositionSizeSuggestion) != tt.wantSize {
				t.Errorf("PositionSizeSuggestion = %q, want %q", got.PositionSizeSuggestion, tt.wantSize)
			}
		})
	}
}

func TestParseDecisionMalformedReasoning(t *testing.T) {
	got := ParseDecision("not json at all")
	if got.Reasoning != "Failed to parse AI response" {
		t.Errorf("Reasoning = %q, want parse-failure note", got.Reasoning)
	}
}

func TestDecisionTolerantNumericFields(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantEntry float64
	}{
		{"numeric entry", `{"recommendation":"BUY","target_entry_price":0.25}`, 0.25},
		{"string entry", `{"recommendation":"BUY","target_entry_price":"0.25"}`, 0.25},
		{"null entry", `{"recommendation":"BUY","target_entry_price":null}`, 0},
		{"garbage entry", `{"recommendation":"BUY","target_entry_price":"n/a"}`, 0},
		{"entry price fallback", `{"recommendation":"BUY","entry_price":0.3}`, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDecision(tt.content)
			if got.Recommendation != "BUY" {
				t.Fatalf("tolerant field decoding broke the whole decision: %+v", got)
			}
			if got.DesiredEntryPrice() != tt.wantEntry {
				t.Errorf("DesiredEntryPrice() = %v, want %v", got.DesiredEntryPrice(), tt.wantEntry)
			}
		})
	}
}

func TestDesiredEntryPricePrefersTarget(t *testing.T) {
	d := Decision{TargetEntryPrice: 0.21, EntryPrice: 0.19}
	if got := d.DesiredEntryPrice(); got != 0.21 {
		t.Errorf("DesiredEntryPrice() = %v, want 0.21", got)
	}
}

func TestFlexStringFromNumber(t *testing.T) {
	got := ParseDecision(`{"recommendation":"BUY","position_size_suggestion":5}`)
	if string(got.PositionSizeSuggestion) != "5" {
		t.Errorf("PositionSizeSuggestion = %q, want %q", got.PositionSizeSuggestion, "5")
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripMarkdownCodeBlock(tt.in); got != tt.want {
			t.Errorf("stripMarkdownCodeBlock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
