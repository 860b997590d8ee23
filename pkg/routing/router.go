// Package routing maps a classification to the team and queue that handle it.
package routing

import (
	"encoding/json"
	"fmt"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/rs/zerolog/log"
)

const (
	TeamProductSupport    = "Product Support Team"
	TeamClaims            = "Claims Department"
	TeamBilling           = "Billing Team"
	TeamITSupport         = "IT Support"
	TeamAccountManagement = "Account Management Team"

	QueuePriority  = "Priority Queue"
	QueueEscalated = "Escalation Team"
	QueueImmediate = "Immediate Attention Desk"

	// labels older classifiers still emit
	legacyClaimStatus     = "claim_status"
	legacyTechnicalIssue  = "technical_issue"
	legacyGeneralQuestion = "general_question"
)

var categoryTeams = map[string]string{
	string(domain.TicketCategory_CoverageInquiry): TeamProductSupport,
	string(domain.TicketCategory_ClaimDenial):     TeamClaims,
	legacyClaimStatus:                                    TeamClaims,
	string(domain.TicketCategory_BillingIssue):           TeamBilling,
	string(domain.TicketCategory_DependentCoverageIssue): TeamITSupport,
	legacyTechnicalIssue:                                 TeamITSupport,
	string(domain.TicketCategory_AccountAccess):          TeamAccountManagement,
	string(domain.TicketCategory_Other):                  domain.DefaultTeam,
	legacyGeneralQuestion:                                domain.DefaultTeam,
}

var urgencyQueues = map[string]string{
	string(domain.TicketUrgency_Low):      domain.DefaultQueue,
	string(domain.TicketUrgency_Medium):   QueuePriority,
	string(domain.TicketUrgency_High):     QueueEscalated,
	string(domain.TicketUrgency_Critical): QueueImmediate,
}

// Route never fails; unknown labels land on the default team and queue.
func Route(classification domain.Classification) domain.RoutingDecision {
	return RouteLabels(string(classification.Category), string(classification.Urgency))
}

func RouteLabels(category, urgency string) domain.RoutingDecision {
	team, ok := categoryTeams[category]
	if !ok {
		team = domain.DefaultTeam
	}

	queue, ok := urgencyQueues[urgency]
	if !ok {
		queue = domain.DefaultQueue
	}

	return domain.RoutingDecision{
		AssignedTeam: team,
		UrgencyLevel: queue,
	}
}

// RouteFromJSON routes a serialized classification. Malformed JSON or
// missing labels route to the defaults.
func RouteFromJSON(raw string) domain.RoutingDecision {
	var message map[string]any
	if err := json.Unmarshal([]byte(raw), &message); err != nil {
		log.Error().Err(err).Msg("Invalid classification JSON, routing to defaults")
	}

	category, ok := message["category"].(string)
	if !ok {
		category = legacyGeneralQuestion
	}

	urgency, ok := message["urgency"].(string)
	if !ok {
		urgency = string(domain.TicketUrgency_Low)
	}

	return RouteLabels(category, urgency)
}

func Display(decision domain.RoutingDecision) string {
	return fmt.Sprintf("📬 Routed to: %s ⏱ Urgency Level: %s", decision.AssignedTeam, decision.UrgencyLevel)
}
