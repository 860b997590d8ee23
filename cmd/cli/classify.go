package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/ingest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewClassifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [ticket-file]",
		Short: "Classify a ticket file or a single ticket",
		Long: `Classify every row of a CSV, TSV, XLSX, JSON, NDJSON or YAML ticket file with
channel and message_content columns. The annotated table is written as CSV,
or XLSX when the output file ends in .xlsx. With --text a single ticket is
classified and printed as JSON without being stored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			if text != "" {
				return runClassifyTicket(cmd, text)
			}

			if len(args) == 0 {
				return fmt.Errorf("a ticket file or --text is required")
			}

			return runClassifyFile(cmd, args[0])
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file, defaults to <input>_classified.csv")
	cmd.Flags().String("format", string(ingest.FileFormatAuto), "Input format: auto, csv, tsv, xlsx, json, ndjson, yaml")
	cmd.Flags().String("text", "", "Classify a single ticket text")
	cmd.Flags().String("channel", "", "Channel of the --text ticket")

	return cmd
}

func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_classified.csv"
}

func runClassifyFile(cmd *cobra.Command, input string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	format, _ := cmd.Flags().GetString("format")
	if !ingest.IsValidFormat(ingest.FileFormat(format)) {
		return fmt.Errorf("unsupported input format: %s", format)
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutputPath(input)
	}

	content, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}

	table, err := ingest.NewDefaultRegistry().Parse(content, "", input, ingest.FileFormat(format))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", input, err)
	}

	container, err := buildContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	annotated, summary, err := container.Service.ClassifyTable(ctx, table)
	if err != nil {
		return err
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(output), ".xlsx") {
		err = ingest.WriteXLSX(file, annotated)
	} else {
		err = ingest.WriteCSV(file, annotated)
	}
	if err != nil {
		return err
	}

	log.Info().Str("output", output).Msg("Results saved")

	fmt.Printf("✅ Classified %d tickets (%d failed)\n", summary.Tickets, summary.Failed)
	fmt.Printf("   Total cost: $%.6f\n", summary.TotalCost)
	fmt.Printf("   Results: %s\n", output)

	return nil
}

func runClassifyTicket(cmd *cobra.Command, text string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	channel, _ := cmd.Flags().GetString("channel")

	container, err := buildContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	result, err := container.Service.ClassifyTicket(ctx, domain.Ticket{Channel: channel, MessageContent: text})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(result); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, result.RoutingDisplay)

	return nil
}
