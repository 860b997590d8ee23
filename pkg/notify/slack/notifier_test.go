package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postedMessage struct {
	Channel     string
	Text        string
	Attachments []map[string]any
}

func newSlackServer(t *testing.T, ok bool) (*httptest.Server, *[]postedMessage) {
	t.Helper()

	var mu sync.Mutex
	var posted []postedMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		message := postedMessage{
			Channel: r.FormValue("channel"),
			Text:    r.FormValue("text"),
		}

		if raw := r.FormValue("attachments"); raw != "" {
			require.NoError(t, json.Unmarshal([]byte(raw), &message.Attachments))
		}

		mu.Lock()
		posted = append(posted, message)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if ok {
			_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
			return
		}

		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	t.Cleanup(server.Close)

	return server, &posted
}

func routedTicket(id string, urgency domain.TicketUrgency) domain.RoutedTicket {
	return domain.RoutedTicket{
		CorrelationID: id,
		Channel:       "email",
		Classification: domain.Classification{
			Category:        domain.TicketCategory_ClaimDenial,
			Urgency:         urgency,
			Sentiment:       domain.CustomerSentiment_Angry,
			Confidence:      0.92,
			KeyInformation:  []string{"knee MRI", "denied"},
			SuggestedAction: "Escalate to a claims specialist",
		},
		Routing: domain.RoutingDecision{AssignedTeam: "Claims Department", UrgencyLevel: "Immediate Attention Desk"},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Opts{ChannelID: "C123"})
	require.Error(t, err)

	_, err = New(Opts{Token: "xoxb-test", ChannelID: "C123", MinUrgency: "urgent"})
	require.Error(t, err)

	notifier, err := New(Opts{Token: "xoxb-test", ChannelID: "C123"})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketUrgency_Critical, notifier.minUrgency)
}

func TestNotifier_Dispatch(t *testing.T) {
	server, posted := newSlackServer(t, true)

	notifier, err := New(Opts{
		Token:      "xoxb-test",
		ChannelID:  "C123",
		MinUrgency: domain.TicketUrgency_High,
		APIURL:     server.URL + "/",
	})
	require.NoError(t, err)

	err = notifier.Dispatch(context.Background(), []domain.RoutedTicket{
		routedTicket("t-low", domain.TicketUrgency_Low),
		routedTicket("t-critical", domain.TicketUrgency_Critical),
		routedTicket("t-medium", domain.TicketUrgency_Medium),
		routedTicket("t-high", domain.TicketUrgency_High),
	})
	require.NoError(t, err)

	require.Len(t, *posted, 2)

	critical := (*posted)[0]
	assert.Equal(t, "C123", critical.Channel)
	assert.Equal(t, ":rotating_light: CRITICAL ticket for *Claims Department* (Immediate Attention Desk)", critical.Text)
	require.Len(t, critical.Attachments, 1)
	assert.Equal(t, colorCritical, critical.Attachments[0]["color"])
	assert.Equal(t, "Escalate to a claims specialist", critical.Attachments[0]["text"])

	assert.Contains(t, (*posted)[1].Text, "HIGH ticket")
}

func TestNotifier_DispatchJoinsErrors(t *testing.T) {
	server, posted := newSlackServer(t, false)

	notifier, err := New(Opts{Token: "xoxb-test", ChannelID: "C123", APIURL: server.URL + "/"})
	require.NoError(t, err)

	err = notifier.Dispatch(context.Background(), []domain.RoutedTicket{
		routedTicket("t-1", domain.TicketUrgency_Critical),
		routedTicket("t-2", domain.TicketUrgency_Critical),
	})
	require.Error(t, err)

	assert.Len(t, *posted, 2)
	assert.Contains(t, err.Error(), "t-1")
	assert.Contains(t, err.Error(), "t-2")
}

func TestNotifier_PostReport(t *testing.T) {
	server, posted := newSlackServer(t, true)

	notifier, err := New(Opts{Token: "xoxb-test", ChannelID: "C123", APIURL: server.URL + "/"})
	require.NoError(t, err)

	err = notifier.PostReport(context.Background(), DailyReport{
		Day:       "2026-10-17",
		Tickets:   12,
		TotalCost: 0.0042,
		Teams:     map[string]int64{"Claims Department": 7, "Billing Team": 5},
	})
	require.NoError(t, err)

	require.Len(t, *posted, 1)
	assert.Equal(t, ":bar_chart: Ticket triage spend for 2026-10-17", (*posted)[0].Text)

	fields := (*posted)[0].Attachments[0]["fields"].([]any)
	require.Len(t, fields, 6)
	assert.Equal(t, "Billing Team", fields[4].(map[string]any)["title"])
	assert.Equal(t, "$0.004200", fields[1].(map[string]any)["value"])
}
