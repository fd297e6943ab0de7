package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twstock",
	Short: "台股估價與選股系統",
	Long: `tw-stock Unified CLI

台灣上市股票的季度估價系統。
以 TWSE 公開資料計算 PER/PBR 合理價帶, 篩選並排序候選股。

Usage:
  go run ./cmd/twstock [command]

Examples:
  go run ./cmd/twstock scan --count 10
  go run ./cmd/twstock stock 2330
  go run ./cmd/twstock universe refresh
  go run ./cmd/twstock api
  go run ./cmd/twstock scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
