package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ttd-workflows/internal/delta"
	"github.com/angelmondragon/ttd-workflows/internal/workflows"
	"github.com/angelmondragon/ttd-workflows/pkg/config"
	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/angelmondragon/ttd-workflows/pkg/logger"
	"github.com/angelmondragon/ttd-workflows/pkg/metrics"
	"github.com/angelmondragon/ttd-workflows/pkg/redis"
	"github.com/angelmondragon/ttd-workflows/pkg/ttd"
)

const serviceName = "ttd"

var errUsage = errors.New("usage: ttd <workflow>|list")

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), errUsage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// logs go to stderr so stdout only carries printed results
	logg := logger.New(logger.Options{ServiceName: serviceName, Output: os.Stderr})

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(pkgerrors.ExitCode(pkgerrors.New(pkgerrors.CodeValidation, errUsage.Error())))
	}

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, flag.Arg(0), os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", pkgerrors.Dump(err).TopMessage)
		os.Exit(pkgerrors.ExitCode(err))
	}
}

func run(ctx context.Context, name string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "load config")
	}

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
		Redact:      cfg.Secrets(),
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"platform_env": cfg.Platform.Environment,
	})

	reg := prometheus.NewRegistry()
	client, err := ttd.NewClient(cfg.Platform,
		ttd.WithLogger(logg),
		ttd.WithMetrics(metrics.NewAPIMetrics(reg)),
	)
	if err != nil {
		return err
	}

	var checkpoints delta.CheckpointStore = delta.NewMemoryCheckpoints()
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap redis")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		checkpoints = delta.NewRedisCheckpoints(redisClient)
	}

	registry, err := buildRegistry(registryParams{
		Config:      cfg,
		Client:      client,
		Logger:      logg,
		Printer:     workflows.NewPrinter(out),
		Checkpoints: checkpoints,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build workflows")
	}

	if name == "list" {
		return list(out, registry)
	}

	runner, err := workflows.NewRunner(workflows.RunnerParams{
		Logger:   logg,
		Registry: registry,
		Metrics:  metrics.NewWorkflowMetrics(reg),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build runner")
	}
	return runner.Run(ctx, name)
}

func list(out io.Writer, registry *workflows.Registry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, wf := range registry.Workflows() {
		summary := ""
		if d, ok := wf.(workflows.Described); ok {
			summary = d.Description()
		}
		fmt.Fprintf(tw, "%s\t%s\n", wf.Name(), summary)
	}
	return tw.Flush()
}
