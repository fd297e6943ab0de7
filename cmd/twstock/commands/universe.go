package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "上市股票名單管理",
	Long: `管理可掃描的上市普通股名單。

Subcommands:
  refresh - 重新抓取名單並存入資料庫
  list    - 顯示目前名單

Example:
  go run ./cmd/twstock universe refresh
  go run ./cmd/twstock universe list`,
}

var (
	universeRefreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "重新抓取上市名單",
		RunE:  refreshUniverse,
	}

	universeListCmd = &cobra.Command{
		Use:   "list",
		Short: "顯示目前名單",
		RunE:  listUniverse,
	}
)

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeRefreshCmd)
	universeCmd.AddCommand(universeListCmd)
}

func refreshUniverse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	stocks, err := stack.universe.List(ctx)
	if err != nil {
		return fmt.Errorf("refresh universe: %w", err)
	}

	fmt.Printf("✅ %d listed common stocks\n", len(stocks))
	return nil
}

func listUniverse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	stocks, err := stack.universe.List(ctx)
	if err != nil {
		return fmt.Errorf("list universe: %w", err)
	}

	fmt.Printf("  %-6s %-16s %-12s %s\n", "Code", "Name", "Market", "Industry")
	for _, s := range stocks {
		fmt.Printf("  %-6s %-16s %-12s %s\n", s.StockNo, s.Name, s.Market, s.Industry)
	}
	fmt.Printf("\nTotal: %d\n", len(stocks))

	return nil
}
