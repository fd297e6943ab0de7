package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/internal/estimator"
	"github.com/jorseph/tw-stock/internal/scanner"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/logger"
)

var stockCodePattern = regexp.MustCompile(`^\d{4}$`)

// NameResolver looks up roster metadata for one stock
type NameResolver interface {
	Get(ctx context.Context, stockNo string) (contracts.Stock, error)
}

// StockHandler handles per-stock valuation API endpoints
// ⭐ SSOT: 個股估值 API 處理只在這個結構
type StockHandler struct {
	quotes  contracts.QuoteStore
	bundles scanner.SeriesCache
	roster  NameResolver
	cfg     config.ScanConfig
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(quotes contracts.QuoteStore, bundles scanner.SeriesCache, roster NameResolver, cfg config.ScanConfig, log *logger.Logger) *StockHandler {
	return &StockHandler{
		quotes:  quotes,
		bundles: bundles,
		roster:  roster,
		cfg:     cfg,
		logger:  log,
	}
}

// ValuationResponse is the per-stock valuation payload
type ValuationResponse struct {
	StockNo  string                               `json:"stock_no"`
	Name     string                               `json:"name,omitempty"`
	Price    float64                              `json:"price"`
	Current  *estimator.CurrentEstimate           `json:"current,omitempty"`
	Quarters []contracts.QuarterlyValuationRecord `json:"quarters"`
}

// GetValuation returns the quarterly valuation series and a live-price
// fair band for one stock
// GET /api/stock/{code}?quarters=8
func (h *StockHandler) GetValuation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["code"]

	if !stockCodePattern.MatchString(code) {
		respondError(w, http.StatusBadRequest, "stock code must be 4 digits")
		return
	}

	quarters := 8
	if qStr := r.URL.Query().Get("quarters"); qStr != "" {
		if q, err := strconv.Atoi(qStr); err == nil && q > 0 {
			quarters = q
		}
	}

	series, found := h.bundles.Get(ctx, code)
	if !found {
		observations, err := h.quotes.History(ctx, code)
		if err != nil {
			if errors.Is(err, contracts.ErrDataUnavailable) {
				respondError(w, http.StatusNotFound, "no ratio data for this stock")
				return
			}
			h.logger.WithError(err).WithField("stock_no", code).Error("Failed to fetch ratio history")
			respondError(w, http.StatusBadGateway, "upstream data source unavailable")
			return
		}
		series = &contracts.ValuationSeries{
			StockNo: code,
			Records: estimator.Estimate(observations),
		}
		// 名稱查不到不影響估值, 留空就好
		if stock, err := h.roster.Get(ctx, code); err == nil {
			series.Name = stock.Name
		}
		h.bundles.Set(ctx, series)
	}

	resp := ValuationResponse{
		StockNo:  code,
		Name:     series.Name,
		Quarters: series.Records,
	}
	if len(resp.Quarters) > quarters {
		resp.Quarters = resp.Quarters[:quarters]
	}

	// 即時價抓不到就只回歷史資料, 不整個失敗
	price, err := h.quotes.LatestClose(ctx, code)
	if err != nil {
		h.logger.WithError(err).WithField("stock_no", code).Debug("Latest close unavailable")
	} else {
		resp.Price = price
		if est, ok := estimator.EstimateCurrent(series.Records, price, h.cfg.MinQuarters); ok {
			resp.Current = &est
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
