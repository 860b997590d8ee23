package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/flowbaker/triage/internal/middlewares"
	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/ingest"
	"github.com/flowbaker/triage/pkg/triage"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

const (
	OutputFormatCSV  = "csv"
	OutputFormatXLSX = "xlsx"

	resultFileBaseName = "classification_results"
)

// TriageService is the part of the triage pipeline the HTTP API drives.
type TriageService interface {
	ProcessBatch(ctx context.Context, tickets []domain.Ticket) []domain.BatchResult
	ClassifyTicket(ctx context.Context, ticket domain.Ticket) (triage.TicketResult, error)
	ClassifyTable(ctx context.Context, table ingest.Table) (ingest.Table, triage.BatchSummary, error)
}

type ClassifyRequest struct {
	Messages []string `json:"messages"`
	Channel  string   `json:"channel"`
}

type ClassifyTicketRequest struct {
	TicketText string `json:"ticket_text"`
	Channel    string `json:"channel"`
}

type ClassifiedTicket struct {
	CorrelationID      string                  `json:"correlation_id"`
	Classification     *domain.Classification  `json:"classification,omitempty"`
	ClassificationJSON string                  `json:"target_label"`
	Routing            *domain.RoutingDecision `json:"routing,omitempty"`
	RoutingInfo        string                  `json:"routing_info"`
	ProcessingCost     float64                 `json:"processing_cost"`
	CostBreakdown      *domain.CostBreakdown   `json:"cost_breakdown,omitempty"`
	ErrorKind          domain.ErrorKind        `json:"error_kind,omitempty"`
}

type ClassifyResponse struct {
	Summary triage.BatchSummary `json:"summary"`
	Results []ClassifiedTicket  `json:"results"`
}

// TriageController serves the classification endpoints.
type TriageController struct {
	service TriageService
	parsers *ingest.ParserRegistry
}

type TriageControllerDependencies struct {
	Service TriageService
	Parsers *ingest.ParserRegistry
}

func NewTriageController(deps TriageControllerDependencies) *TriageController {
	parsers := deps.Parsers
	if parsers == nil {
		parsers = ingest.NewDefaultRegistry()
	}

	return &TriageController{
		service: deps.Service,
		parsers: parsers,
	}
}

// Classify handles a JSON batch of messages that share one channel.
func (c *TriageController) Classify(ctx fiber.Ctx) error {
	var req ClassifyRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	tickets, err := ingest.TicketsFromMessages(req.Messages, req.Channel)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	log.Info().
		Int("messages", len(tickets)).
		Str("channel", req.Channel).
		Str("subject", requestSubject(ctx)).
		Msg("Received classification request")

	results := c.service.ProcessBatch(ctx.RequestCtx(), tickets)

	response := ClassifyResponse{
		Summary: triage.Summarize(results),
		Results: make([]ClassifiedTicket, len(results)),
	}

	for i, result := range results {
		response.Results[i] = ClassifiedTicket{
			CorrelationID:      result.CorrelationID,
			Classification:     result.Classification,
			ClassificationJSON: result.ClassificationJSON,
			Routing:            result.Routing,
			RoutingInfo:        result.RoutingDisplay,
			ProcessingCost:     result.Cost,
			CostBreakdown:      result.CostBreakdown,
			ErrorKind:          domain.KindOf(result.Err),
		}
	}

	return ctx.JSON(response)
}

// ClassifyTicket handles a single ticket without persisting it.
func (c *TriageController) ClassifyTicket(ctx fiber.Ctx) error {
	var req ClassifyTicketRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := c.service.ClassifyTicket(ctx.RequestCtx(), domain.Ticket{
		Channel:        req.Channel,
		MessageContent: req.TicketText,
	})
	if err != nil {
		if domain.KindOf(err) == domain.ErrorKind_InvalidInput {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		log.Error().Err(err).Str("subject", requestSubject(ctx)).Msg("Failed to classify ticket")
		return fiber.NewError(fiber.StatusBadGateway, "Classification failed. Please try again later.")
	}

	return ctx.JSON(ClassifiedTicket{
		CorrelationID:      result.CorrelationID,
		Classification:     &result.Classification,
		ClassificationJSON: result.ClassificationJSON,
		Routing:            &result.Routing,
		RoutingInfo:        result.RoutingDisplay,
		ProcessingCost:     result.Cost.TotalCost,
		CostBreakdown:      &result.Cost,
	})
}

// ClassifyFile handles a multipart ticket file and answers with the annotated
// file, CSV unless ?format=xlsx.
func (c *TriageController) ClassifyFile(ctx fiber.Ctx) error {
	outputFormat := strings.ToLower(ctx.Query("format", OutputFormatCSV))
	if outputFormat != OutputFormatCSV && outputFormat != OutputFormatXLSX {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Unsupported output format: %s", outputFormat))
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "A ticket file is required in the 'file' field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to open uploaded file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file")
	}

	table, err := c.parsers.Parse(content, fileHeader.Header.Get(fiber.HeaderContentType), fileHeader.Filename, ingest.FileFormatAuto)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Error reading ticket file: %v", err))
	}

	log.Info().
		Str("file", filepath.Base(fileHeader.Filename)).
		Int("rows", len(table.Rows)).
		Str("subject", requestSubject(ctx)).
		Msg("Received ticket file")

	annotated, summary, err := c.service.ClassifyTable(ctx.RequestCtx(), table)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingColumns) || errors.Is(err, ingest.ErrTooManyTickets) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		log.Error().Err(err).Msg("Failed to classify ticket file")
		return fiber.NewError(fiber.StatusInternalServerError, "Classification failed. Please try again later.")
	}

	var buf bytes.Buffer

	ctx.Attachment(resultFileBaseName + "." + outputFormat)

	switch outputFormat {
	case OutputFormatXLSX:
		err = ingest.WriteXLSX(&buf, annotated)
		ctx.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		err = ingest.WriteCSV(&buf, annotated)
		ctx.Set(fiber.HeaderContentType, "text/csv")
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write classification results")
		return fiber.NewError(fiber.StatusInternalServerError, "Error saving results file.")
	}

	ctx.Set("X-Tickets-Failed", fmt.Sprintf("%d", summary.Failed))

	return ctx.Send(buf.Bytes())
}

// requestSubject is the JWT subject of the caller, empty for API key auth.
func requestSubject(ctx fiber.Ctx) string {
	claims, ok := middlewares.Claims(ctx)
	if !ok {
		return ""
	}

	return claims.Subject
}
