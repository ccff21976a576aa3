package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/allisson/paidleave/internal/app"
	"github.com/allisson/paidleave/internal/config"
)

func getCommands(version string) []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getPipelineCommands()...)
	cmds = append(cmds, getReportCommands()...)
	cmds = append(cmds, getWorkerCommands(version)...)
	return cmds
}

// formatFlag selects text or json output.
func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

// withContainer loads and validates the configuration, builds the container and shuts it
// down after fn returns.
func withContainer(ctx context.Context, fn func(cfg *config.Config, container *app.Container) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	container := app.NewContainer(cfg)
	defer func() {
		if err := container.Shutdown(ctx); err != nil {
			container.Logger().Error("failed to shutdown container", slog.Any("error", err))
		}
	}()

	return fn(cfg, container)
}

// pushMetrics pushes the job's metrics and logs, rather than returns, a failure so the
// job outcome decides the exit code.
func pushMetrics(ctx context.Context, container *app.Container, job string) {
	if err := container.PushMetrics(ctx, job); err != nil {
		container.Logger().Error("failed to push metrics",
			slog.String("job", job),
			slog.Any("error", err),
		)
	}
}
