package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-sales/internal/app"
	"github.com/odyssey-erp/odyssey-sales/jobs"
)

// Enqueuer submits background jobs. *jobs.Client satisfies it.
type Enqueuer interface {
	EnqueueCatalogWarmup(ctx context.Context, payload jobs.CatalogWarmupPayload) (*asynq.TaskInfo, error)
	EnqueueQuotationExpiryScan(ctx context.Context, limit int) (*asynq.TaskInfo, error)
	Close() error
}

// newEnqueuer is replaced in tests.
var newEnqueuer = func(cfg *app.Config) (Enqueuer, error) {
	return jobs.NewClient(redisOpts(cfg))
}

// EnqueueResult identifies an enqueued task.
type EnqueueResult struct {
	Task  string `json:"task"`
	ID    string `json:"id"`
	Queue string `json:"queue"`
	Items int    `json:"items,omitempty"`
}

// RenderText prints the task id.
func (r EnqueueResult) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "enqueued %s id=%s queue=%s\n", r.Task, r.ID, r.Queue)
	return err
}

// NewWarmCatalogCommand creates the warm-catalog command.
func NewWarmCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "warm-catalog <item>...",
		Short: "Enqueue a catalog price cache warmup",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := jobs.CatalogWarmupPayload{Items: args, Concurrency: concurrency}
			return runEnqueue(rootOpts, cmd, func(ctx context.Context, q Enqueuer) (*asynq.TaskInfo, error) {
				return q.EnqueueCatalogWarmup(ctx, payload)
			}, len(args))
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel price lookups in the worker")
	return cmd
}

// NewScanQuotationsCommand creates the scan-quotations command.
func NewScanQuotationsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan-quotations",
		Short: "Enqueue an out-of-schedule quotation expiry scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(rootOpts, cmd, func(ctx context.Context, q Enqueuer) (*asynq.TaskInfo, error) {
				return q.EnqueueQuotationExpiryScan(ctx, limit)
			}, 0)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum quotations to scan (0 scans all)")
	return cmd
}

func runEnqueue(opts *RootOptions, cmd *cobra.Command, enqueue func(context.Context, Enqueuer) (*asynq.TaskInfo, error), items int) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Failure(err)
	}
	client, err := newEnqueuer(cfg)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitCommandError, "connect queue", err))
	}
	defer func() {
		if err := client.Close(); err != nil {
			opts.logger(cmd.ErrOrStderr()).Warn("queue client close", "error", err)
		}
	}()

	info, err := enqueue(cmd.Context(), client)
	if err != nil {
		return formatter.Failure(WrapExitError(ExitFailure, "enqueue", err))
	}
	return formatter.Success(EnqueueResult{Task: info.Type, ID: info.ID, Queue: info.Queue, Items: items})
}
