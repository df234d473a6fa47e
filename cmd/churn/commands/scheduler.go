package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/churn-mlops/internal/alert"
	"github.com/wonny/churn-mlops/internal/runlog"
	"github.com/wonny/churn-mlops/internal/scheduler"
	"github.com/wonny/churn-mlops/internal/scheduler/jobs"
	"github.com/wonny/churn-mlops/pkg/config"
	"github.com/wonny/churn-mlops/pkg/httputil"
	"github.com/wonny/churn-mlops/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run scheduled pipeline jobs",
	Long: `Manages the cron-driven operational jobs.

Registered jobs:
  drift_check  - nightly 02:00, PSI check with webhook alert on FAIL
  batch_score  - nightly 03:00, scores the latest cohort

Subcommands:
  start   - run the scheduler in the foreground
  list    - list registered jobs
  run     - trigger one job immediately
  status  - show job execution statistics

Example:
  go run ./cmd/churn scheduler start
  go run ./cmd/churn scheduler run drift_check`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job execution statistics",
		RunE:  showSchedulerStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	sched.Start()

	fmt.Println("Scheduler started. Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	if err := sched.RunJob(args[0]); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Println("Job started (running in background)")
	return nil
}

func showSchedulerStatus(cmd *cobra.Command, args []string) error {
	sched, cleanup, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer cleanup()

	for jobName, stat := range sched.GetJobStats() {
		fmt.Printf("%s\n", jobName)
		fmt.Printf("  Schedule: %s\n", stat.Schedule)
		fmt.Printf("  Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("  Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("  Failures: %d\n", stat.FailureCount)
		if stat.LastRun != nil {
			fmt.Printf("  Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}

func initScheduler() (*scheduler.Scheduler, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	repo, err := runlog.Connect(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Warn("Run history unavailable")
		repo = nil
	}
	cleanup := func() { repo.Close() }

	notifier := alert.New(cfg.AlertWebhookURL, httputil.New(log), log)

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewDriftCheckJob(cfg, notifier, repo, log)); err != nil {
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewBatchScoreJob(cfg, log)); err != nil {
		return nil, nil, err
	}

	return sched, cleanup, nil
}
