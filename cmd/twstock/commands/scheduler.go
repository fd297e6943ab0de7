package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jorseph/tw-stock/internal/scheduler"
	"github.com/jorseph/tw-stock/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "排程管理",
	Long: `啟動排程器或立即執行單一排程工作。

登錄的工作:
- universe_refresh: 平日 08:30 (重抓上市名單)
- daily_scan:       平日 15:00 (收盤後全市場掃描)

Subcommands:
  start - 啟動排程器
  list  - 列出登錄的工作
  run   - 立即執行指定工作

Example:
  go run ./cmd/twstock scheduler start
  go run ./cmd/twstock scheduler run daily_scan`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "啟動排程器",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "列出登錄的工作",
		RunE:  listScheduledJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "立即執行指定工作",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduledJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler wires the scheduler with every registered job
func initScheduler(stack *appStack) (*scheduler.Scheduler, error) {
	sched := scheduler.New(stack.log)

	if err := sched.AddJob(jobs.NewUniverseRefreshJob(stack.universe, stack.uniRepo, stack.quoteRepo, stack.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewScanJob(stack.runner, stack.cfg.Scan, stack.log)); err != nil {
		return nil, err
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tw-stock Scheduler ===")

	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	sched, err := initScheduler(stack)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	stack.runner.Cancel()
	sched.Stop()
	return nil
}

func listScheduledJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	sched, err := initScheduler(stack)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for name, stats := range sched.GetJobStats() {
		fmt.Printf("  %-18s %s\n", name, stats.Schedule)
	}

	return nil
}

func runScheduledJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx := context.Background()
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer stack.Close()

	sched, err := initScheduler(stack)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job %s...\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return err
	}

	// RunJob 是非同步的, 等使用者中斷或工作自己結束
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			stack.runner.Cancel()
			return nil
		case <-ticker.C:
			stats := sched.GetJobStats()[jobName]
			if stats.TotalRuns == 0 {
				continue
			}
			if stats.LastSucceeded {
				fmt.Println("✅ Job completed")
				return nil
			}
			return fmt.Errorf("job %s failed", jobName)
		}
	}
}
