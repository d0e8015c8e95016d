package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chat is one advisor conversation: the prompt sent, the raw completion
// and the reasoning note recorded for it.
type Chat struct {
	ID         uuid.UUID `json:"id"`
	Model      string    `json:"model"`
	Chat       string    `json:"chat"`
	Reasoning  string    `json:"reasoning"`
	UserPrompt string    `json:"user_prompt"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Trade records an executed order. ChatID links back to the advisor
// conversation that produced it; closes carry a zero pricing because
// the fill price is not looked up.
type Trade struct {
	ID         uuid.UUID  `json:"id"`
	Symbol     string     `json:"symbol"`
	Operation  string     `json:"operation"`
	Amount     float64    `json:"amount"`
	Pricing    float64    `json:"pricing"`
	Leverage   int        `json:"leverage"`
	StopLoss   *float64   `json:"stop_loss,omitempty"`
	TakeProfit *float64   `json:"take_profit,omitempty"`
	ChatID     *uuid.UUID `json:"chat_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MetricsDocument is a named rolling array of JSON snapshots. The
// repository caps the array length on append.
type MetricsDocument struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Model     string            `json:"model"`
	Metrics   []json.RawMessage `json:"metrics"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
