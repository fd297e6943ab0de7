package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jorseph/tw-stock/internal/contracts"
	"github.com/jorseph/tw-stock/internal/estimator"
)

// stockCmd represents the stock command
var stockCmd = &cobra.Command{
	Use:   "stock [code]",
	Short: "查單一股票的季度估值與合理價帶",
	Long: `抓取一檔股票的完整 PER/PBR 歷史, 輸出季度估值紀錄,
並用最新收盤價算出現價合理價帶。

Example:
  go run ./cmd/twstock stock 2330
  go run ./cmd/twstock stock 2412 --quarters 12`,
	Args: cobra.ExactArgs(1),
	RunE: runStock,
}

var stockQuarters int

func init() {
	rootCmd.AddCommand(stockCmd)

	stockCmd.Flags().IntVar(&stockQuarters, "quarters", 8, "最多顯示幾季")
}

func runStock(cmd *cobra.Command, args []string) error {
	code := args[0]

	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	observations, err := stack.quotes.History(ctx, code)
	if err != nil {
		if errors.Is(err, contracts.ErrDataUnavailable) {
			return fmt.Errorf("no ratio data for %s", code)
		}
		return fmt.Errorf("fetch history for %s: %w", code, err)
	}

	records := estimator.Estimate(observations)
	if len(records) == 0 {
		return fmt.Errorf("no usable quarters for %s", code)
	}

	// 名稱從 stock_list 帶出來, 沒有就只印代號
	title := code
	if stock, err := stack.uniRepo.Get(ctx, code); err == nil && stock.Name != "" {
		title = fmt.Sprintf("%s %s", code, stock.Name)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  %s quarterly valuation\n", title)
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  %-8s %7s %7s %7s %7s %8s %8s %8s\n",
		"Quarter", "PERavg", "PBRmed", "ROE%", "EPS", "FairLow", "FairMid", "FairHigh")

	shown := records
	if len(shown) > stockQuarters {
		shown = shown[:stockQuarters]
	}
	for _, rec := range shown {
		if !rec.Valid {
			fmt.Printf("  %-8s %s\n", rec.Quarter.Label(), "(no usable samples)")
			continue
		}
		fmt.Printf("  %-8s %7.2f %7.2f %7.2f %7.2f %8.2f %8.2f %8.2f\n",
			rec.Quarter.Label(), rec.PERMean, rec.PBRMedian, rec.ROE, rec.EPS,
			rec.FairLow, rec.FairNormal, rec.FairHigh)
	}

	// Live-price band when a close is available
	price, err := stack.quotes.LatestClose(ctx, code)
	if err != nil {
		fmt.Println("───────────────────────────────────────────────────────────")
		fmt.Println("  latest close unavailable, skipping current estimate")
		return nil
	}

	if est, ok := estimator.EstimateCurrent(records, price, stack.cfg.Scan.MinQuarters); ok {
		fmt.Println("───────────────────────────────────────────────────────────")
		fmt.Printf("  Price now : %.2f\n", est.Price)
		fmt.Printf("  Avg ROE   : %.2f%% (last %d quarters)\n", est.AvgROE, est.Quarters)
		fmt.Printf("  Fair band : %.2f / %.2f / %.2f\n", est.FairLow, est.FairNormal, est.FairHigh)
	}

	return nil
}
