package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/logger"
)

type stubQuotes struct {
	histories map[string][]contracts.RatioObservation
	prices    map[string]float64
	closeErr  error
}

func (s *stubQuotes) History(_ context.Context, stockNo string) ([]contracts.RatioObservation, error) {
	obs, ok := s.histories[stockNo]
	if !ok {
		return nil, contracts.ErrDataUnavailable
	}
	return obs, nil
}

func (s *stubQuotes) LatestClose(_ context.Context, stockNo string) (float64, error) {
	if s.closeErr != nil {
		return 0, s.closeErr
	}
	return s.prices[stockNo], nil
}

type stubBundles struct {
	series map[string]*contracts.ValuationSeries
}

func (s *stubBundles) Get(_ context.Context, stockNo string) (*contracts.ValuationSeries, bool) {
	v, ok := s.series[stockNo]
	return v, ok
}

func (s *stubBundles) Set(_ context.Context, series *contracts.ValuationSeries) {
	if s.series == nil {
		s.series = make(map[string]*contracts.ValuationSeries)
	}
	s.series[series.StockNo] = series
}

type stubRoster struct {
	stocks map[string]contracts.Stock
}

func (s *stubRoster) Get(_ context.Context, stockNo string) (contracts.Stock, error) {
	stock, ok := s.stocks[stockNo]
	if !ok {
		return contracts.Stock{}, contracts.ErrDataUnavailable
	}
	return stock, nil
}

func quarterObservations(stockNo string) []contracts.RatioObservation {
	dates := []time.Time{
		time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.June, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.September, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.December, 12, 0, 0, 0, 0, time.UTC),
	}
	obs := make([]contracts.RatioObservation, 0, len(dates))
	for _, d := range dates {
		obs = append(obs, contracts.RatioObservation{
			StockNo:   stockNo,
			TradeDate: d,
			PER:       10.0,
			PBR:       2.0,
			Close:     50.0,
		})
	}
	return obs
}

func stockTestConfig() config.ScanConfig {
	return config.ScanConfig{MinQuarters: 4, ResultMax: 15}
}

func doStockRequest(t *testing.T, h *StockHandler, url string) *httptest.ResponseRecorder {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/api/stock/{code}", h.GetValuation).Methods("GET")

	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStockHandler_RejectsInvalidCode(t *testing.T) {
	h := NewStockHandler(&stubQuotes{}, &stubBundles{}, &stubRoster{}, stockTestConfig(), logger.Nop())

	rec := doStockRequest(t, h, "/api/stock/abcd")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doStockRequest(t, h, "/api/stock/12345")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStockHandler_UnknownStockIs404(t *testing.T) {
	h := NewStockHandler(&stubQuotes{}, &stubBundles{}, &stubRoster{}, stockTestConfig(), logger.Nop())

	rec := doStockRequest(t, h, "/api/stock/9999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStockHandler_ReturnsValuationWithCurrentEstimate(t *testing.T) {
	quotes := &stubQuotes{
		histories: map[string][]contracts.RatioObservation{"2330": quarterObservations("2330")},
		prices:    map[string]float64{"2330": 40.0},
	}
	bundles := &stubBundles{}
	h := NewStockHandler(quotes, bundles, &stubRoster{}, stockTestConfig(), logger.Nop())

	rec := doStockRequest(t, h, "/api/stock/2330")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValuationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2330", resp.StockNo)
	assert.Equal(t, 40.0, resp.Price)
	assert.Len(t, resp.Quarters, 4)
	require.NotNil(t, resp.Current)
	assert.InDelta(t, 20.0, resp.Current.AvgROE, 1e-9)
	assert.InDelta(t, 40.0, resp.Current.FairNormal, 1e-9, "price at PBR 2 and PER 10 is its own fair value")

	// Series is cached for subsequent requests
	_, ok := bundles.Get(context.Background(), "2330")
	assert.True(t, ok)
}

func TestStockHandler_FillsNameFromRosterOnCacheMiss(t *testing.T) {
	quotes := &stubQuotes{
		histories: map[string][]contracts.RatioObservation{"2330": quarterObservations("2330")},
		prices:    map[string]float64{"2330": 40.0},
	}
	roster := &stubRoster{
		stocks: map[string]contracts.Stock{"2330": {StockNo: "2330", Name: "台積電"}},
	}
	h := NewStockHandler(quotes, &stubBundles{}, roster, stockTestConfig(), logger.Nop())

	rec := doStockRequest(t, h, "/api/stock/2330")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValuationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "台積電", resp.Name)
}

func TestStockHandler_PriceFailureStillReturnsHistory(t *testing.T) {
	quotes := &stubQuotes{
		histories: map[string][]contracts.RatioObservation{"2330": quarterObservations("2330")},
		closeErr:  &contracts.UpstreamError{Op: "close", Err: contracts.ErrDataUnavailable},
	}
	h := NewStockHandler(quotes, &stubBundles{}, &stubRoster{}, stockTestConfig(), logger.Nop())

	rec := doStockRequest(t, h, "/api/stock/2330")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValuationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Price)
	assert.Nil(t, resp.Current)
	assert.Len(t, resp.Quarters, 4)
}

func TestStockHandler_QuartersParamTruncates(t *testing.T) {
	quotes := &stubQuotes{
		histories: map[string][]contracts.RatioObservation{"2330": quarterObservations("2330")},
		prices:    map[string]float64{"2330": 40.0},
	}
	h := NewStockHandler(quotes, &stubBundles{}, &stubRoster{}, stockTestConfig(), logger.Nop())

	rec := doStockRequest(t, h, "/api/stock/2330?quarters=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValuationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Quarters, 2)
}
