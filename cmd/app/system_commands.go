package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/allisson/paidleave/cmd/app/commands"
	"github.com/allisson/paidleave/internal/app"
	"github.com/allisson/paidleave/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				container.Logger().Info("starting migrations", slog.String("version", version))
				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "was-processed",
			Usage: "Report whether a run type recorded a positive metric within N business days",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "run-type",
					Aliases:  []string{"t"},
					Required: true,
					Usage:    "Batch run type (e.g., case-writeback)",
				},
				&cli.StringFlag{
					Name:     "metric",
					Aliases:  []string{"m"},
					Required: true,
					Usage:    "Metric name in the run report (e.g., writeback_sent_count)",
				},
				&cli.IntFlag{
					Name:    "business-days",
					Aliases: []string{"d"},
					Value:   1,
					Usage:   "Number of trailing business days to look at",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					batchRuns, err := container.BatchRunUseCase()
					if err != nil {
						return err
					}

					return commands.RunWasProcessed(
						ctx,
						batchRuns,
						commands.DefaultIO().Writer,
						cmd.String("run-type"),
						cmd.String("metric"),
						int(cmd.Int("business-days")),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "state-counts",
			Usage: "Count entities per current state of a flow",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "flow",
					Aliases: []string{"l"},
					Value:   1,
					Usage:   "Flow id (1 delegated payment, 2 delegated EFT, 3 PUB transaction, 4 case writeback, 5 delegated claim)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					stateLogs, err := container.StateLogUseCase()
					if err != nil {
						return err
					}

					return commands.RunStateCounts(
						ctx,
						stateLogs,
						commands.DefaultIO().Writer,
						int(cmd.Int("flow")),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
