package universe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jorseph/tw-stock/internal/contracts"
)

// Repository stores the stock list in PostgreSQL
// ⭐ SSOT: stock_list 表只在這裡讀寫
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new universe repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Save upserts the stock list
func (r *Repository) Save(ctx context.Context, stocks []contracts.Stock) error {
	if len(stocks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, stock := range stocks {
		batch.Queue(`
			INSERT INTO stock_list (stock_no, name, industry, market, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (stock_no)
			DO UPDATE SET name = EXCLUDED.name, industry = EXCLUDED.industry,
			              market = EXCLUDED.market, updated_at = now()
		`, stock.StockNo, stock.Name, stock.Industry, stock.Market)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range stocks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert stock: %w", err)
		}
	}

	return nil
}

// LoadAll returns the stored stock list ordered by stock number.
// Scan order must be stable across resumes.
func (r *Repository) LoadAll(ctx context.Context) ([]contracts.Stock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT stock_no, name, industry, market
		FROM stock_list
		ORDER BY stock_no ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stock list: %w", err)
	}
	defer rows.Close()

	stocks := make([]contracts.Stock, 0)
	for rows.Next() {
		var s contracts.Stock
		if err := rows.Scan(&s.StockNo, &s.Name, &s.Industry, &s.Market); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}

	return stocks, rows.Err()
}

// Get returns one stock by number
func (r *Repository) Get(ctx context.Context, stockNo string) (contracts.Stock, error) {
	var s contracts.Stock
	err := r.db.QueryRow(ctx, `
		SELECT stock_no, name, industry, market FROM stock_list WHERE stock_no = $1
	`, stockNo).Scan(&s.StockNo, &s.Name, &s.Industry, &s.Market)
	if err != nil {
		return contracts.Stock{}, fmt.Errorf("get stock %s: %w", stockNo, err)
	}
	return s, nil
}
