package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

const DefaultChannel = "unknown"

// Ticket is one inbound customer-support message.
type Ticket struct {
	Channel        string `json:"channel"`
	MessageContent string `json:"message_content"`
}

func (t Ticket) ChannelOrDefault() string {
	if strings.TrimSpace(t.Channel) == "" {
		return DefaultChannel
	}

	return t.Channel
}

type TicketCategory string

const (
	TicketCategory_ClaimDenial            TicketCategory = "claim_denial"
	TicketCategory_AccountAccess          TicketCategory = "account_access"
	TicketCategory_CoverageInquiry        TicketCategory = "coverage_inquiry"
	TicketCategory_DependentCoverageIssue TicketCategory = "dependent_coverage_issue"
	TicketCategory_BillingIssue           TicketCategory = "billing_issue"
	TicketCategory_Other                  TicketCategory = "other"
)

var TicketCategories = []TicketCategory{
	TicketCategory_ClaimDenial,
	TicketCategory_AccountAccess,
	TicketCategory_CoverageInquiry,
	TicketCategory_DependentCoverageIssue,
	TicketCategory_BillingIssue,
	TicketCategory_Other,
}

func (c TicketCategory) IsValid() bool {
	for _, known := range TicketCategories {
		if c == known {
			return true
		}
	}

	return false
}

type TicketUrgency string

const (
	TicketUrgency_Low      TicketUrgency = "low"
	TicketUrgency_Medium   TicketUrgency = "medium"
	TicketUrgency_High     TicketUrgency = "high"
	TicketUrgency_Critical TicketUrgency = "critical"
)

// TicketUrgencies is ordered from least to most urgent.
var TicketUrgencies = []TicketUrgency{
	TicketUrgency_Low,
	TicketUrgency_Medium,
	TicketUrgency_High,
	TicketUrgency_Critical,
}

// Rank returns the position of the urgency in LOW < MEDIUM < HIGH < CRITICAL,
// or -1 for values outside the enumeration.
func (u TicketUrgency) Rank() int {
	for i, known := range TicketUrgencies {
		if u == known {
			return i
		}
	}

	return -1
}

func (u TicketUrgency) IsValid() bool {
	return u.Rank() >= 0
}

type CustomerSentiment string

const (
	CustomerSentiment_Angry      CustomerSentiment = "angry"
	CustomerSentiment_Frustrated CustomerSentiment = "frustrated"
	CustomerSentiment_Neutral    CustomerSentiment = "neutral"
	CustomerSentiment_Satisfied  CustomerSentiment = "satisfied"
)

var CustomerSentiments = []CustomerSentiment{
	CustomerSentiment_Angry,
	CustomerSentiment_Frustrated,
	CustomerSentiment_Neutral,
	CustomerSentiment_Satisfied,
}

func (s CustomerSentiment) IsValid() bool {
	for _, known := range CustomerSentiments {
		if s == known {
			return true
		}
	}

	return false
}

// Classification is the structured model output for a single ticket.
type Classification struct {
	Category        TicketCategory    `json:"category" jsonschema:"The most appropriate ticket category"`
	Urgency         TicketUrgency     `json:"urgency" jsonschema:"How urgently the ticket must be handled"`
	Sentiment       CustomerSentiment `json:"sentiment" jsonschema:"The customer's sentiment"`
	Confidence      float64           `json:"confidence" jsonschema:"Confidence score for the classification"`
	KeyInformation  []string          `json:"key_information" jsonschema:"List of key points extracted from the ticket"`
	SuggestedAction string            `json:"suggested_action" jsonschema:"Brief suggestion for handling the ticket"`
}

// Validate reports values outside the enumerations or the confidence range.
// Nothing is clamped.
func (c Classification) Validate() error {
	if !c.Category.IsValid() {
		return fmt.Errorf("%w: unknown category %q", ErrSchemaViolation, c.Category)
	}

	if !c.Urgency.IsValid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrSchemaViolation, c.Urgency)
	}

	if !c.Sentiment.IsValid() {
		return fmt.Errorf("%w: unknown sentiment %q", ErrSchemaViolation, c.Sentiment)
	}

	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrSchemaViolation, c.Confidence)
	}

	return nil
}

// JSON renders the classification the way it is stored and costed.
func (c Classification) JSON() (string, error) {
	if c.KeyInformation == nil {
		c.KeyInformation = []string{}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal classification: %w", err)
	}

	return string(data), nil
}
