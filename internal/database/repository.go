package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MetricsRollingCap bounds the metrics array of a document; the oldest
// entries are dropped on append once the cap is reached.
const MetricsRollingCap = 100

// Repository provides data access for chats, trades and metrics.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveChat inserts an advisor conversation and fills in the generated
// ID and timestamps.
func (r *Repository) SaveChat(ctx context.Context, chat *Chat) error {
	chat.ID = uuid.New()

	query := `
		INSERT INTO chats (id, model, chat, reasoning, user_prompt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return r.db.Pool.QueryRow(ctx, query,
		chat.ID, chat.Model, chat.Chat, chat.Reasoning, chat.UserPrompt,
	).Scan(&chat.CreatedAt, &chat.UpdatedAt)
}

// SaveTrade inserts an executed trade row.
func (r *Repository) SaveTrade(ctx context.Context, trade *Trade) error {
	trade.ID = uuid.New()

	query := `
		INSERT INTO trades (id, symbol, operation, amount, pricing, leverage, stop_loss, take_profit, chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	return r.db.Pool.QueryRow(ctx, query,
		trade.ID, trade.Symbol, trade.Operation, trade.Amount, trade.Pricing,
		trade.Leverage, trade.StopLoss, trade.TakeProfit, trade.ChatID,
	).Scan(&trade.CreatedAt)
}

// ListChats returns the most recent conversations, newest first.
func (r *Repository) ListChats(ctx context.Context, limit int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, model, chat, reasoning, user_prompt, created_at, updated_at
		FROM chats
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Model, &c.Chat, &c.Reasoning, &c.UserPrompt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// ListCompletedTrades returns executed trades, newest first.
func (r *Repository) ListCompletedTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, symbol, operation, amount, pricing, leverage, stop_loss, take_profit, chat_id, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Operation, &t.Amount, &t.Pricing,
			&t.Leverage, &t.StopLoss, &t.TakeProfit, &t.ChatID, &t.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// AppendMetric appends one snapshot to the named document, creating the
// row on first use and trimming the array to MetricsRollingCap. The
// append and trim run in one statement so overlapping cycles cannot
// lose entries. Returns the entry count after the append.
func (r *Repository) AppendMetric(ctx context.Context, name, model string, entry any) (int, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("marshal metrics entry: %w", err)
	}

	query := `
		INSERT INTO metrics (id, name, model, metrics)
		VALUES ($1, $2, $3, jsonb_build_array($4::jsonb))
		ON CONFLICT (name) DO UPDATE SET
			metrics = (
				SELECT COALESCE(jsonb_agg(elem ORDER BY ord), '[]'::jsonb)
				FROM jsonb_array_elements(metrics.metrics || jsonb_build_array($4::jsonb))
					WITH ORDINALITY AS entries(elem, ord)
				WHERE ord > jsonb_array_length(metrics.metrics || jsonb_build_array($4::jsonb)) - $5
			),
			model = EXCLUDED.model,
			updated_at = CURRENT_TIMESTAMP
		RETURNING jsonb_array_length(metrics.metrics)`

	var count int
	err = r.db.Pool.QueryRow(ctx, query,
		uuid.New(), name, model, string(payload), MetricsRollingCap,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetLatestMetrics loads the named metrics document. Returns
// pgx.ErrNoRows when the collector has not produced anything yet.
func (r *Repository) GetLatestMetrics(ctx context.Context, name string) (*MetricsDocument, error) {
	query := `
		SELECT id, name, model, metrics, created_at, updated_at
		FROM metrics
		WHERE name = $1`

	var doc MetricsDocument
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, query, name).Scan(
		&doc.ID, &doc.Name, &doc.Model, &raw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics array: %w", err)
		}
	}
	return &doc, nil
}
