package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/paidleave/cmd/app/commands"
	"github.com/allisson/paidleave/internal/app"
	"github.com/allisson/paidleave/internal/config"
	paymentUseCase "github.com/allisson/paidleave/internal/payment/usecase"
	"github.com/allisson/paidleave/internal/step"
	writebackUseCase "github.com/allisson/paidleave/internal/writeback/usecase"
)

// Batch run types recorded by the pipeline commands.
const (
	runTypeReceive           = "payment-extract"
	runTypeAddressValidation = "payment-address-validation"
	runTypePostProcessing    = "payment-post-processing"
	runTypeCancellation      = "payment-cancellation"
	runTypePipeline          = "payment-pipeline"
)

func sourceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "Scheduler recorded on the batch run (defaults to BATCH_SOURCE)",
	}
}

func sourceOf(cmd *cli.Command, cfg *config.Config) string {
	if source := cmd.String("source"); source != "" {
		return source
	}
	return cfg.BatchSource
}

// runSteps runs steps as one job and pushes the job's metrics.
func runSteps(
	ctx context.Context,
	cmd *cli.Command,
	cfg *config.Config,
	container *app.Container,
	runType string,
	continueOnError bool,
	steps ...step.Step,
) error {
	runner, err := container.JobRunner()
	if err != nil {
		return err
	}

	err = commands.RunJob(ctx, runner, container.Logger(), commands.DefaultIO().Writer, step.Job{
		Source:          sourceOf(cmd, cfg),
		RunType:         runType,
		Steps:           steps,
		ContinueOnError: continueOnError,
	}, cmd.String("format"))
	pushMetrics(ctx, container, runType)
	return err
}

func getPipelineCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "receive-extract",
			Usage: "Store a case system extract of employees, claims and payments",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "file",
					Aliases:  []string{"f"},
					Required: true,
					Usage:    "Path to the JSON extract",
				},
				sourceFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					extract, err := readExtract(cmd.String("file"))
					if err != nil {
						return err
					}
					payments, err := container.PaymentUseCase()
					if err != nil {
						return err
					}
					receive := paymentUseCase.NewReceiveStep(payments, extract)
					return runSteps(ctx, cmd, cfg, container, runTypeReceive, false, receive)
				})
			},
		},
		{
			Name:  "resolve-pub-id",
			Usage: "Resolve a PUB individual id (E<n> or P<n>) to the entity it identifies",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Required: true,
					Usage:    "PUB individual id, e.g. P1042",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					payments, err := container.PaymentUseCase()
					if err != nil {
						return err
					}
					return commands.RunResolvePubID(
						ctx,
						payments,
						commands.DefaultIO().Writer,
						cmd.String("id"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "validate-addresses",
			Usage: "Queue received payments and validate their payee records",
			Flags: []cli.Flag{sourceFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					addressValidation, err := container.AddressValidationStep()
					if err != nil {
						return err
					}
					return runSteps(ctx, cmd, cfg, container, runTypeAddressValidation, false, addressValidation)
				})
			},
		},
		{
			Name:  "post-process",
			Usage: "Run post-processing checks on payments awaiting post-processing",
			Flags: []cli.Flag{sourceFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					postProcessing, err := container.PostProcessingStep()
					if err != nil {
						return err
					}
					return runSteps(ctx, cmd, cfg, container, runTypePostProcessing, false, postProcessing)
				})
			},
		},
		{
			Name:  "cancel-payments",
			Usage: "Cancel payments pending cancellation together with their sibling payments",
			Flags: []cli.Flag{sourceFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					cancellation, err := container.CancellationStep()
					if err != nil {
						return err
					}
					return runSteps(ctx, cmd, cfg, container, runTypeCancellation, false, cancellation)
				})
			},
		},
		{
			Name:  "payment-pipeline",
			Usage: "Run address validation, cancellation and post-processing in a single batch run",
			Flags: []cli.Flag{
				sourceFlag(),
				&cli.BoolFlag{
					Name:  "continue-on-error",
					Value: false,
					Usage: "Run the remaining steps after a non-fatal step failure",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					addressValidation, err := container.AddressValidationStep()
					if err != nil {
						return err
					}
					cancellation, err := container.CancellationStep()
					if err != nil {
						return err
					}
					postProcessing, err := container.PostProcessingStep()
					if err != nil {
						return err
					}
					return runSteps(
						ctx,
						cmd,
						cfg,
						container,
						runTypePipeline,
						cmd.Bool("continue-on-error"),
						addressValidation,
						cancellation,
						postProcessing,
					)
				})
			},
		},
		{
			Name:  "transmit-writeback",
			Usage: "Send unsent case system writeback rows",
			Flags: []cli.Flag{
				sourceFlag(),
				&cli.BoolFlag{
					Name:  "force",
					Value: false,
					Usage: "Send even if a writeback was sent within WRITEBACK_GUARD_BUSINESS_DAYS",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Value:   false,
					Usage:   "Log the rows instead of uploading them (rows are still marked sent)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					runner, err := container.JobRunner()
					if err != nil {
						return err
					}
					batchRuns, err := container.BatchRunUseCase()
					if err != nil {
						return err
					}
					writebacks, err := container.WritebackUseCase()
					if err != nil {
						return err
					}

					transmitter := container.DryRunTransmitter()
					if !cmd.Bool("dry-run") {
						transmitter, err = container.Transmitter()
						if err != nil {
							return err
						}
					}

					err = commands.RunTransmitWriteback(
						ctx,
						runner,
						batchRuns,
						writebackUseCase.NewTransmitStep(writebacks, transmitter),
						container.Logger(),
						commands.DefaultIO().Writer,
						sourceOf(cmd, cfg),
						cfg.WritebackGuardBusinessDays,
						cmd.Bool("force"),
						cmd.String("format"),
					)
					pushMetrics(ctx, container, commands.WritebackRunType)
					return err
				})
			},
		},
	}
}

func readExtract(path string) (*paymentUseCase.Extract, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return paymentUseCase.DecodeExtract(file)
}
