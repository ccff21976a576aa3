package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/paidleave/cmd/app/commands"
	"github.com/allisson/paidleave/internal/app"
	"github.com/allisson/paidleave/internal/config"
)

func getReportCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "export-audit-report",
			Usage: "Export the audit details of a batch run to an xlsx workbook",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "batch-run-id",
					Aliases:  []string{"r"},
					Required: true,
					Usage:    "Batch run ID (UUID)",
				},
				&cli.StringFlag{
					Name:    "report-type",
					Aliases: []string{"t"},
					Value:   "payment_audit",
					Usage:   "Report type: 'payment_audit' or 'payment_error'",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(cfg *config.Config, container *app.Container) error {
					audits, err := container.AuditReportUseCase()
					if err != nil {
						return err
					}

					return commands.RunExportAuditReport(
						ctx,
						audits,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("batch-run-id"),
						cmd.String("report-type"),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
