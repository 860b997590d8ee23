package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowbaker/triage/internal/controllers"
	"github.com/flowbaker/triage/internal/server"
	"github.com/flowbaker/triage/pkg/ingest"
	"github.com/flowbaker/triage/pkg/reports"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the classification HTTP API",
		Long:  `Start the HTTP API that classifies ticket batches, single tickets and uploaded ticket files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("address", "", "Listen address, overrides HTTP_ADDRESS")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	container, err := buildContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	address := container.Config.HTTPAddress
	if override, _ := cmd.Flags().GetString("address"); override != "" {
		address = override
	}

	app := server.NewHTTPServer(ctx, server.HTTPServerDependencies{
		TriageController: controllers.NewTriageController(controllers.TriageControllerDependencies{
			Service: container.Service,
			Parsers: ingest.NewDefaultRegistry(),
		}),
		HealthController: controllers.NewHealthController(controllers.HealthControllerDependencies{
			Reporter: container,
		}),
		JWTSecret: container.Config.JWTSecret,
		APIKey:    container.Config.APIKey,
	})

	if container.Ledger != nil && container.Notifier != nil {
		scheduler, err := reports.NewScheduler(reports.SchedulerDependencies{
			Source: container.Ledger,
			Poster: container.Notifier,
		}, container.Config.DailyReportSchedule)
		if err != nil {
			return err
		}

		go scheduler.Start(ctx)
	}

	log.Info().Str("address", address).Msg("Starting triage API")

	if err := app.Listen(address, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	}); err != nil {
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	log.Info().Msg("Triage API stopped")
	return nil
}
