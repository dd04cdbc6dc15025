package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medfilt/internal/logging"
	"medfilt/internal/models"
	"medfilt/pkg/batch"
	"medfilt/pkg/config"
	"medfilt/pkg/group"
)

type runOptions struct {
	configPath string
	workers    int
	world      int
	backend    string
	redisAddr  string
	job        string
	rank       int
	report     string
	debug      bool
}

func newRunCmd(stdout io.Writer) *cobra.Command {
	opts := &runOptions{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "run <input> <output> <size> [count]",
		Short: "Filter every image of <input> into <output> with a <size>x<size> median window",
		Long: `Filter every image of <input> into <output> with a <size>x<size> median window.

When [count] is given, only the first count images of the sorted listing are
processed; a count of 0 processes none. Without it every listed image is.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 || len(args) > 4 {
				return fmt.Errorf("%w: expected <input> <output> <size> [count], got %d arguments", models.ErrInvalidArguments, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}

			log, err := logging.New(cfg.Output.Debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runFilter(ctx, cfg, uuid.NewString(), log, stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flags.IntVarP(&opts.workers, "workers", "w", defaults.Workers.Count, "Number of local workers")
	flags.IntVar(&opts.world, "world", 0, "Group size every redis process joins (defaults to --workers)")
	flags.StringVar(&opts.backend, "backend", defaults.Workers.Backend, "Worker group backend: local or redis")
	flags.StringVar(&opts.redisAddr, "redis", defaults.Redis.Addr, "Redis address for the redis backend")
	flags.StringVar(&opts.job, "job", "", "Job name shared by every redis process of one run")
	flags.IntVar(&opts.rank, "rank", group.AutoRank, "Rank of this redis process (-1 claims one)")
	flags.StringVar(&opts.report, "report", "", "Write a YAML run summary to this path")
	flags.BoolVar(&opts.debug, "debug", false, "Turn on debugging output")
	return cmd
}

// resolve builds the effective configuration: the config file (or the
// defaults), then changed flags, then positional arguments.
func (o *runOptions) resolve(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers.Count = o.workers
	}
	if flags.Changed("world") {
		cfg.Workers.Count = o.world
	}
	if flags.Changed("backend") {
		cfg.Workers.Backend = o.backend
	}
	if flags.Changed("redis") {
		cfg.Redis.Addr = o.redisAddr
	}
	if flags.Changed("job") {
		cfg.Redis.Job = o.job
	}
	if flags.Changed("rank") {
		cfg.Redis.Rank = o.rank
	}
	if flags.Changed("report") {
		cfg.Output.Report = o.report
	}
	if flags.Changed("debug") {
		cfg.Output.Debug = o.debug
	}

	cfg.Paths.Input = args[0]
	cfg.Paths.Output = args[1]

	size, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, fmt.Errorf("%w: filter size %q is not an integer", models.ErrInvalidArguments, args[2])
	}
	cfg.Filter.Size = size

	if len(args) == 4 {
		count, err := strconv.Atoi(args[3])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: image count %q is not a non-negative integer", models.ErrInvalidArguments, args[3])
		}
		cfg.Paths.Count = count
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runFilter runs this process's share of the job and reports the outcome.
func runFilter(ctx context.Context, cfg *config.Config, runID string, log *zap.SugaredLogger, stdout io.Writer) error {
	params := &batch.Params{
		InputDir:  cfg.Paths.Input,
		OutputDir: cfg.Paths.Output,
		Size:      cfg.Filter.Size,
		Count:     cfg.Paths.Count,
	}
	log = log.With("run", runID)
	log.Infow("starting median filter",
		"input", params.InputDir, "output", params.OutputDir, "size", params.Size,
		"backend", cfg.Workers.Backend, "workers", cfg.Workers.Count)

	var results []batch.Result
	var runErr error

	switch cfg.Workers.Backend {
	case config.BackendRedis:
		g, err := group.NewRedis(ctx, group.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Job:      cfg.Redis.Job,
			Size:     cfg.Workers.Count,
			Rank:     cfg.Redis.Rank,
			TTL:      cfg.Redis.KeyTTL,
		})
		if err != nil {
			return fmt.Errorf("could not join worker group: %w", err)
		}
		defer g.Close()
		log.Infow("joined redis worker group", "member", g.ID(), "rank", g.Rank(), "size", g.Size(), "generation", g.Generation())

		w := batch.NewWorker(params, g, log)
		w.SetOutput(stdout)
		res, err := w.Run(ctx)
		results, runErr = []batch.Result{res}, err

	default:
		results, runErr = batch.RunLocal(ctx, params, cfg.Workers.Count, log, stdout)
	}

	summary := batch.Summarize(runID, params, results)
	if cfg.Output.Report != "" {
		if err := batch.WriteReport(cfg.Output.Report, summary); err != nil {
			log.Errorw("could not write run report", "path", cfg.Output.Report, "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	if runErr != nil {
		log.Errorw("median filter failed",
			"failedRanks", summary.FailedRanks, "unprocessed", len(summary.Unprocessed), "error", runErr)
		return runErr
	}
	log.Infow("median filter finished",
		"images", summary.Processed, "elapsed", summary.ElapsedSeconds, "meanSeconds", summary.MeanSeconds)
	return nil
}
