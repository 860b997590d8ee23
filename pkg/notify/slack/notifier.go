// Package slack alerts a Slack channel about urgent routed tickets and posts
// daily spend reports.
package slack

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

const (
	DefaultMinUrgency = domain.TicketUrgency_Critical

	colorCritical = "#d62728"
	colorHigh     = "#ff7f0e"
	colorReport   = "#1f77b4"

	maxKeyInformation = 5
)

type messagePoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts one message per ticket at or above minUrgency.
type Notifier struct {
	poster     messagePoster
	channelID  string
	minUrgency domain.TicketUrgency
}

type Opts struct {
	Token      string
	ChannelID  string
	MinUrgency domain.TicketUrgency
	// APIURL overrides the Slack API endpoint.
	APIURL string
}

func New(opts Opts) (*Notifier, error) {
	if opts.Token == "" || opts.ChannelID == "" {
		return nil, errors.New("slack notifier requires a token and a channel id")
	}

	var options []slack.Option
	if opts.APIURL != "" {
		options = append(options, slack.OptionAPIURL(opts.APIURL))
	}

	return newNotifier(slack.New(opts.Token, options...), opts.ChannelID, opts.MinUrgency)
}

func newNotifier(poster messagePoster, channelID string, minUrgency domain.TicketUrgency) (*Notifier, error) {
	if minUrgency == "" {
		minUrgency = DefaultMinUrgency
	}

	if !minUrgency.IsValid() {
		return nil, fmt.Errorf("unknown urgency %q", minUrgency)
	}

	return &Notifier{
		poster:     poster,
		channelID:  channelID,
		minUrgency: minUrgency,
	}, nil
}

func (n *Notifier) shouldAlert(ticket domain.RoutedTicket) bool {
	return ticket.Classification.Urgency.Rank() >= n.minUrgency.Rank()
}

// Dispatch alerts on every urgent ticket. All tickets are attempted; the
// failures are joined.
func (n *Notifier) Dispatch(ctx context.Context, tickets []domain.RoutedTicket) error {
	var errs []error
	sent := 0

	for _, ticket := range tickets {
		if !n.shouldAlert(ticket) {
			continue
		}

		_, _, err := n.poster.PostMessageContext(ctx, n.channelID,
			slack.MsgOptionText(alertText(ticket), false),
			slack.MsgOptionAttachments(alertAttachment(ticket)),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("ticket %s: %w", ticket.CorrelationID, err))
			continue
		}

		sent++
	}

	if sent > 0 {
		log.Info().Int("alerts", sent).Str("channel_id", n.channelID).Msg("Posted urgent ticket alerts")
	}

	return errors.Join(errs...)
}

func alertText(ticket domain.RoutedTicket) string {
	return fmt.Sprintf(":rotating_light: %s ticket for *%s* (%s)",
		strings.ToUpper(string(ticket.Classification.Urgency)),
		ticket.Routing.AssignedTeam,
		ticket.Routing.UrgencyLevel,
	)
}

func alertAttachment(ticket domain.RoutedTicket) slack.Attachment {
	color := colorHigh
	if ticket.Classification.Urgency == domain.TicketUrgency_Critical {
		color = colorCritical
	}

	keyInformation := ticket.Classification.KeyInformation
	if len(keyInformation) > maxKeyInformation {
		keyInformation = keyInformation[:maxKeyInformation]
	}

	fields := []slack.AttachmentField{
		{Title: "Category", Value: string(ticket.Classification.Category), Short: true},
		{Title: "Sentiment", Value: string(ticket.Classification.Sentiment), Short: true},
		{Title: "Channel", Value: ticket.Channel, Short: true},
		{Title: "Correlation ID", Value: ticket.CorrelationID, Short: true},
	}

	if len(keyInformation) > 0 {
		fields = append(fields, slack.AttachmentField{Title: "Key information", Value: "• " + strings.Join(keyInformation, "\n• ")})
	}

	return slack.Attachment{
		Color:    color,
		Fallback: alertText(ticket),
		Text:     ticket.Classification.SuggestedAction,
		Fields:   fields,
	}
}

// DailyReport is the spend summary posted once per day.
type DailyReport struct {
	Day          string
	Tickets      int64
	InputTokens  int64
	OutputTokens int64
	TotalCost    float64
	Teams        map[string]int64
}

func (n *Notifier) PostReport(ctx context.Context, report DailyReport) error {
	fields := []slack.AttachmentField{
		{Title: "Tickets", Value: fmt.Sprintf("%d", report.Tickets), Short: true},
		{Title: "Total cost", Value: fmt.Sprintf("$%.6f", report.TotalCost), Short: true},
		{Title: "Input tokens", Value: fmt.Sprintf("%d", report.InputTokens), Short: true},
		{Title: "Output tokens", Value: fmt.Sprintf("%d", report.OutputTokens), Short: true},
	}

	for _, team := range sortedKeys(report.Teams) {
		fields = append(fields, slack.AttachmentField{Title: team, Value: fmt.Sprintf("%d", report.Teams[team]), Short: true})
	}

	_, _, err := n.poster.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(fmt.Sprintf(":bar_chart: Ticket triage spend for %s", report.Day), false),
		slack.MsgOptionAttachments(slack.Attachment{Color: colorReport, Fields: fields}),
	)
	if err != nil {
		return fmt.Errorf("failed to post daily report: %w", err)
	}

	return nil
}

func sortedKeys(values map[string]int64) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
