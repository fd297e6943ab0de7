package quote

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorseph/tw-stock/internal/contracts"
)

// Repository stores ratio observations in PostgreSQL
// ⭐ SSOT: ratio_observations 表只在這裡讀寫
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new quote repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ObservationsByStock returns all stored observations, oldest first
func (r *Repository) ObservationsByStock(ctx context.Context, stockNo string) ([]contracts.RatioObservation, error) {
	query := `
		SELECT stock_no, trade_date, COALESCE(per, 0), COALESCE(pbr, 0), COALESCE(close_price, 0)
		FROM ratio_observations
		WHERE stock_no = $1
		ORDER BY trade_date ASC
	`

	rows, err := r.db.Query(ctx, query, stockNo)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	observations := make([]contracts.RatioObservation, 0)
	for rows.Next() {
		var obs contracts.RatioObservation
		if err := rows.Scan(&obs.StockNo, &obs.TradeDate, &obs.PER, &obs.PBR, &obs.Close); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

// UpsertObservations writes observations idempotently.
// 重抓同一天的資料直接覆蓋，不會累積重複列。
func (r *Repository) UpsertObservations(ctx context.Context, observations []contracts.RatioObservation) error {
	if len(observations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, obs := range observations {
		batch.Queue(`
			INSERT INTO ratio_observations (stock_no, trade_date, per, pbr, close_price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (stock_no, trade_date)
			DO UPDATE SET per = EXCLUDED.per, pbr = EXCLUDED.pbr, close_price = EXCLUDED.close_price
		`, obs.StockNo, obs.TradeDate, obs.PER, obs.PBR, obs.Close)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range observations {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert observation: %w", err)
		}
	}

	return nil
}

// DeleteByStock removes one stock's observations. 下市清理用。
func (r *Repository) DeleteByStock(ctx context.Context, stockNo string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM ratio_observations WHERE stock_no = $1`, stockNo)
	if err != nil {
		return fmt.Errorf("delete observations: %w", err)
	}
	return nil
}
