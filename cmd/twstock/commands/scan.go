package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jorseph/tw-stock/internal/contracts"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "掃描全市場並輸出便宜股清單",
	Long: `掃描所有上市普通股, 計算季度合理價帶並篩選排序。

這個命令會:
- 抓取每檔股票的 PER/PBR 日資料 (有快取就用快取)
- 聚合成季度估值紀錄與合理價帶
- 篩掉 ROE 不足或趨勢不穩的股票
- 依綜合分數排序輸出前 N 名

中斷 (Ctrl+C) 會在 batch 邊界停下並保留進度,
下次執行自動續掃。

Example:
  go run ./cmd/twstock scan
  go run ./cmd/twstock scan --count 5`,
	RunE: runScan,
}

var scanCount int

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVar(&scanCount, "count", 10, "最多輸出幾檔 (1-15)")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tw-stock Scan ===")

	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	// Ctrl+C stops at the next batch boundary, keeping the checkpoint
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		fmt.Println("\nCancelling, waiting for the current batch...")
		stack.runner.Cancel()
	}()

	stack.runner.OnProgress(func(u contracts.ProgressUpdate) {
		fmt.Printf("  progress: %d/%d processed, %d passed\n", u.Processed, u.Total, u.Passed)
	})

	result, err := stack.runner.Scan(ctx, scanCount)
	if err != nil {
		return err
	}

	printScanResult(result)
	return nil
}

func printScanResult(result *contracts.ScanResult) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Scan %s\n", result.Status)
	fmt.Println("───────────────────────────────────────────────────────────")
	fmt.Printf("  Processed : %d/%d\n", result.Processed, result.Total)
	fmt.Printf("  Skipped   : %d\n", result.Skipped)
	fmt.Printf("  Duration  : %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Second))
	fmt.Println("───────────────────────────────────────────────────────────")

	if len(result.Candidates) == 0 {
		fmt.Println("  No candidates passed screening")
		return
	}

	fmt.Printf("  %-4s %-6s %-10s %8s %8s %8s %6s\n",
		"Rank", "Code", "Name", "Price", "FairLow", "FairMid", "Score")
	for _, c := range result.Candidates {
		fmt.Printf("  %-4d %-6s %-10s %8.2f %8.2f %8.2f %6.1f\n",
			c.Rank, c.StockNo, c.Name, c.Price, c.FairLow, c.FairNormal, c.Score)
	}
}
