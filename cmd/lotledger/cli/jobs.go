package cli

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/lotledger/lotledger/internal/app"
	"github.com/lotledger/lotledger/jobs"
)

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "warmup",
		Short: "Enqueue a stock report warm-up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := redisOpts()
			if err != nil {
				return err
			}
			client := asynq.NewClient(opts)
			defer client.Close()
			info, err := client.EnqueueContext(cmd.Context(), jobs.NewStockReportWarmupTask(), asynq.Queue(jobs.QueueDefault))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := redisOpts()
			if err != nil {
				return err
			}
			inspector := asynq.NewInspector(opts)
			defer inspector.Close()
			info, err := inspector.GetQueueInfo(jobs.QueueDefault)
			if errors.Is(err, asynq.ErrQueueNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "queue %s is empty\n", jobs.QueueDefault)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d failed_today=%d\n",
				info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry, info.Failed)
			return nil
		},
	})
	return cmd
}

func redisOpts() (asynq.RedisClientOpt, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	if cfg.RedisAddr == "" {
		return asynq.RedisClientOpt{}, errors.New("jobs: REDIS_ADDR is empty")
	}
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, nil
}
