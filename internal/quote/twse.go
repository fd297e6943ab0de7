// Package quote reads PER/PBR ratio history and closing prices, remotely
// from the TWSE after-trading endpoints or locally from the pgx ledger.
package quote

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/httputil"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// Client talks to the TWSE open endpoints.
// BWIBBU 給每日殖利率/本益比/股價淨值比，STOCK_DAY 給收盤價，按月查詢。
// ⭐ SSOT: 證交所 API 呼叫只在這裡
type Client struct {
	baseURL    string
	httpClient *httputil.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewClient creates a TWSE client with in-process request pacing.
// 節流是必要的：打太快會被證交所暫時封 IP。
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	perSec := cfg.TWSE.RatePerSec
	if perSec < 1 {
		perSec = 1
	}
	return &Client{
		baseURL:    cfg.TWSE.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		logger:     log.WithField("module", "twse"),
	}
}

// twseResponse is the shared envelope of TWSE after-trading endpoints
type twseResponse struct {
	Stat   string     `json:"stat"`
	Fields []string   `json:"fields"`
	Data   [][]string `json:"data"`
}

const statOK = "OK"

// FetchMonthRatios returns the daily ratio rows of one stock for the
// month containing date. Closing price is zero here; join with
// FetchMonthCloses.
func (c *Client) FetchMonthRatios(ctx context.Context, stockNo string, month time.Time) ([]contracts.RatioObservation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/rwd/zh/afterTrading/BWIBBU?date=%s&stockNo=%s&response=json",
		c.baseURL, month.Format("20060102"), stockNo)

	var resp twseResponse
	if err := c.httpClient.GetJSON(ctx, url, &resp); err != nil {
		return nil, &contracts.UpstreamError{Op: "BWIBBU", Err: err}
	}

	if resp.Stat != statOK || len(resp.Data) == 0 {
		// "很抱歉,沒有符合條件的資料": 沒掛牌、停牌或當月無資料
		return nil, contracts.ErrDataUnavailable
	}

	return parseRatioRows(stockNo, resp.Data), nil
}

// FetchMonthCloses returns closing prices keyed by ISO date (2006-01-02)
// for the month containing date.
func (c *Client) FetchMonthCloses(ctx context.Context, stockNo string, month time.Time) (map[string]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/rwd/zh/afterTrading/STOCK_DAY?date=%s&stockNo=%s&response=json",
		c.baseURL, month.Format("20060102"), stockNo)

	var resp twseResponse
	if err := c.httpClient.GetJSON(ctx, url, &resp); err != nil {
		return nil, &contracts.UpstreamError{Op: "STOCK_DAY", Err: err}
	}

	if resp.Stat != statOK || len(resp.Data) == 0 {
		return nil, contracts.ErrDataUnavailable
	}

	return parseCloseRows(resp.Data), nil
}

// parseRatioRows converts BWIBBU rows into observations.
// Row layout: 日期, 殖利率(%), 股利年度, 本益比, 股價淨值比, 財報年/季
func parseRatioRows(stockNo string, rows [][]string) []contracts.RatioObservation {
	observations := make([]contracts.RatioObservation, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}

		tradeDate, err := ParseROCDate(row[0])
		if err != nil {
			continue
		}

		// "-" 代表該日無值，parse 成 0 讓 estimator 過濾掉
		per, _ := parseNumber(row[3])
		pbr, _ := parseNumber(row[4])

		observations = append(observations, contracts.RatioObservation{
			StockNo:   stockNo,
			TradeDate: tradeDate,
			PER:       per,
			PBR:       pbr,
		})
	}
	return observations
}

// parseCloseRows converts STOCK_DAY rows into date→close.
// Row layout: 日期, 成交股數, 成交金額, 開盤價, 最高價, 最低價, 收盤價, ...
func parseCloseRows(rows [][]string) map[string]float64 {
	closes := make(map[string]float64, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		tradeDate, err := ParseROCDate(row[0])
		if err != nil {
			continue
		}
		if close, ok := parseNumber(row[6]); ok && close > 0 {
			closes[tradeDate.Format("2006-01-02")] = close
		}
	}
	return closes
}

// ParseROCDate parses a Republic-of-China era date like "113/01/15"
func ParseROCDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid ROC date: %q", s)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ROC year: %q", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid ROC month: %q", s)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid ROC day: %q", s)
	}

	return time.Date(year+1911, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// parseNumber parses TWSE numeric strings ("1,234.56", "-" means absent)
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" || s == "--" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
