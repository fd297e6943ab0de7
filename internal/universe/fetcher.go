// Package universe provides the ordered list of scannable TWSE stocks.
package universe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/pkg/config"
	"github.com/jorseph/tw-stock/pkg/httputil"
	"github.com/jorseph/tw-stock/pkg/logger"
)

// 一般股票是四碼數字；權證/ETF/特別股在 ISIN 清單會混在一起，要濾掉
var commonStockPattern = regexp.MustCompile(`^\d{4}$`)

// Fetcher pulls the listed-company universe from open data, with the
// TWSE ISIN page as fallback when the open-data endpoint is down.
// ⭐ SSOT: 上市清單抓取只在這裡
type Fetcher struct {
	listingURL string
	isinURL    string
	httpClient *httputil.Client
	logger     *logger.Logger
}

// NewFetcher creates a universe fetcher
func NewFetcher(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Fetcher {
	return &Fetcher{
		listingURL: cfg.TWSE.ListingURL,
		isinURL:    cfg.TWSE.ISINURL,
		httpClient: httpClient,
		logger:     log.WithField("module", "universe"),
	}
}

// List fetches the universe, primary source first
func (f *Fetcher) List(ctx context.Context) ([]contracts.Stock, error) {
	stocks, err := f.fetchOpenData(ctx)
	if err == nil {
		return stocks, nil
	}
	f.logger.WithError(err).Warn("Open data listing failed, trying ISIN page")

	stocks, isinErr := f.fetchISIN(ctx)
	if isinErr != nil {
		return nil, fmt.Errorf("universe listing failed: %w (fallback: %v)", err, isinErr)
	}
	return stocks, nil
}

// govStock matches the data.gov.tw listed-company JSON
type govStock struct {
	StockNo  string `json:"stock_no"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Market   string `json:"market"`
}

func (f *Fetcher) fetchOpenData(ctx context.Context) ([]contracts.Stock, error) {
	body, err := f.httpClient.GetBody(ctx, f.listingURL)
	if err != nil {
		return nil, err
	}
	return parseOpenDataListing(body)
}

func parseOpenDataListing(body []byte) ([]contracts.Stock, error) {
	var raw []govStock
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode listing JSON: %w", err)
	}

	stocks := make([]contracts.Stock, 0, len(raw))
	for _, item := range raw {
		no := strings.TrimSpace(item.StockNo)
		if !commonStockPattern.MatchString(no) {
			continue
		}
		stocks = append(stocks, contracts.Stock{
			StockNo:  no,
			Name:     strings.TrimSpace(item.Name),
			Industry: strings.TrimSpace(item.Industry),
			Market:   strings.TrimSpace(item.Market),
		})
	}

	if len(stocks) == 0 {
		return nil, fmt.Errorf("listing JSON contained no stocks")
	}
	return stocks, nil
}

func (f *Fetcher) fetchISIN(ctx context.Context) ([]contracts.Stock, error) {
	body, err := f.httpClient.GetBody(ctx, f.isinURL)
	if err != nil {
		return nil, err
	}
	return parseISINTable(body)
}

// parseISINTable parses the isin.twse.com.tw securities table. The first
// cell holds "代號　名稱" joined by a full-width space; non-stock rows
// (section headers, warrants, ETFs) are skipped.
func parseISINTable(body []byte) ([]contracts.Stock, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ISIN HTML: %w", err)
	}

	stocks := make([]contracts.Stock, 0, 1024)
	doc.Find("table.h4 tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}

		codeName := strings.TrimSpace(cells.Eq(0).Text())
		parts := strings.SplitN(codeName, "　", 2) // 全形空白
		if len(parts) != 2 {
			return
		}

		no := strings.TrimSpace(parts[0])
		if !commonStockPattern.MatchString(no) {
			return
		}

		stocks = append(stocks, contracts.Stock{
			StockNo:  no,
			Name:     strings.TrimSpace(parts[1]),
			Market:   strings.TrimSpace(cells.Eq(3).Text()),
			Industry: strings.TrimSpace(cells.Eq(4).Text()),
		})
	})

	if len(stocks) == 0 {
		return nil, fmt.Errorf("ISIN table contained no stocks")
	}
	return stocks, nil
}
