package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"github.com/allisson/paidleave/cmd/app/commands"
	"github.com/allisson/paidleave/internal/app"
	"github.com/allisson/paidleave/internal/config"
	"github.com/allisson/paidleave/internal/step"
	"github.com/allisson/paidleave/internal/worker"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

func getWorkerCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "worker",
			Usage: "Run the payment pipeline and writeback transmission on WORKER_INTERVAL_MINUTES",
			Flags: []cli.Flag{
				sourceFlag(),
				&cli.BoolFlag{
					Name:  "run-on-start",
					Value: true,
					Usage: "Run the jobs once immediately instead of waiting for the first interval",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					gin.SetMode(cfg.GetGinMode())

					logger := container.Logger()
					logger.Info("starting worker", slog.String("version", version))

					jobs, err := workerJobs(cmd, cfg, container)
					if err != nil {
						return err
					}

					server, err := container.HTTPServer()
					if err != nil {
						return err
					}

					loop := worker.NewWorker(worker.Config{
						Interval:   cfg.WorkerInterval,
						RunOnStart: cmd.Bool("run-on-start"),
					}, logger, jobs...)

					return commands.RunWorker(ctx, server, loop, logger, cfg.DBConnMaxLifetime)
				})
			},
		},
	}
}

// workerJobs builds the pipeline job followed by the guarded writeback transmission.
func workerJobs(cmd *cli.Command, cfg *config.Config, container *app.Container) ([]worker.Job, error) {
	runner, err := container.JobRunner()
	if err != nil {
		return nil, err
	}
	batchRuns, err := container.BatchRunUseCase()
	if err != nil {
		return nil, err
	}
	addressValidation, err := container.AddressValidationStep()
	if err != nil {
		return nil, err
	}
	cancellation, err := container.CancellationStep()
	if err != nil {
		return nil, err
	}
	postProcessing, err := container.PostProcessingStep()
	if err != nil {
		return nil, err
	}
	writebacks, err := container.WritebackUseCase()
	if err != nil {
		return nil, err
	}
	transmitter, err := container.Transmitter()
	if err != nil {
		return nil, err
	}

	logger := container.Logger()
	source := sourceOf(cmd, cfg)

	return []worker.Job{
		{
			Name: runTypePipeline,
			Run: func(ctx context.Context) error {
				err := commands.RunJob(ctx, runner, logger, io.Discard, step.Job{
					Source:  source,
					RunType: runTypePipeline,
					Steps:   []step.Step{addressValidation, cancellation, postProcessing},
				}, "json")
				pushMetrics(ctx, container, runTypePipeline)
				return err
			},
		},
		{
			Name: commands.WritebackRunType,
			Run: func(ctx context.Context) error {
				err := commands.RunTransmitWriteback(
					ctx,
					runner,
					batchRuns,
					writebackUseCase.NewTransmitStep(writebacks, transmitter),
					logger,
					io.Discard,
					source,
					cfg.WritebackGuardBusinessDays,
					false,
					"json",
				)
				pushMetrics(ctx, container, commands.WritebackRunType)
				return err
			},
		},
	}, nil
}
