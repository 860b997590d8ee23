// Package redis keeps running classification spend in Redis hashes, one set
// of keys per UTC day.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/flowbaker/triage/pkg/domain"
	"github.com/flowbaker/triage/pkg/textnorm"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultKeyPrefix = "triage"
	DefaultTTL       = 90 * 24 * time.Hour

	dayLayout = "2006-01-02"

	fieldTickets      = "tickets"
	fieldInputTokens  = "input_tokens"
	fieldOutputTokens = "output_tokens"
	fieldTotalCost    = "total_cost"
)

type Ledger struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

type Opts struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type LedgerDeps struct {
	Context context.Context
	// Client is used as is when set, otherwise one is built from Opts.
	Client *redis.Client
}

func New(deps LedgerDeps, opts Opts) (*Ledger, error) {
	client := deps.Client
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
	}

	if err := client.Ping(deps.Context).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := opts.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Ledger{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

func (l *Ledger) costKey(day string) string {
	return fmt.Sprintf("%s:costs:%s", l.keyPrefix, day)
}

func (l *Ledger) categoryKey(day string) string {
	return fmt.Sprintf("%s:categories:%s", l.keyPrefix, day)
}

func (l *Ledger) teamKey(day string) string {
	return fmt.Sprintf("%s:teams:%s", l.keyPrefix, day)
}

func (l *Ledger) batchKey(batchID string) string {
	return fmt.Sprintf("%s:batches:%s", l.keyPrefix, batchID)
}

// Record adds the tickets' token counts and cost to today's totals.
func (l *Ledger) Record(ctx context.Context, batchID string, tickets []domain.RoutedTicket) error {
	if len(tickets) == 0 {
		return nil
	}

	day := l.now().UTC().Format(dayLayout)

	var total domain.CostBreakdown
	categories := map[string]int64{}
	teams := map[string]int64{}

	for _, ticket := range tickets {
		total = total.Add(ticket.Cost)
		categories[string(ticket.Classification.Category)]++
		teams[textnorm.Key(ticket.Routing.AssignedTeam, "unassigned")]++
	}

	costKey := l.costKey(day)
	categoryKey := l.categoryKey(day)
	teamKey := l.teamKey(day)

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, costKey, fieldTickets, int64(len(tickets)))
		pipe.HIncrBy(ctx, costKey, fieldInputTokens, int64(total.SystemPromptTokens+total.InputTokens))
		pipe.HIncrBy(ctx, costKey, fieldOutputTokens, int64(total.OutputTokens))
		pipe.HIncrByFloat(ctx, costKey, fieldTotalCost, total.TotalCost)

		for category, count := range categories {
			pipe.HIncrBy(ctx, categoryKey, category, count)
		}

		for team, count := range teams {
			pipe.HIncrBy(ctx, teamKey, team, count)
		}

		if batchID != "" {
			batchKey := l.batchKey(batchID)
			pipe.HSet(ctx, batchKey,
				fieldTickets, len(tickets),
				fieldTotalCost, strconv.FormatFloat(total.TotalCost, 'f', -1, 64),
				"recorded_at", l.now().UTC().Format(time.RFC3339Nano),
			)
			pipe.Expire(ctx, batchKey, l.ttl)
		}

		pipe.Expire(ctx, costKey, l.ttl)
		pipe.Expire(ctx, categoryKey, l.ttl)
		pipe.Expire(ctx, teamKey, l.ttl)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record batch cost: %w", err)
	}

	log.Debug().
		Str("batch_id", batchID).
		Int("tickets", len(tickets)).
		Float64("cost", total.TotalCost).
		Msg("Recorded batch cost")

	return nil
}

// DailySummary is the accumulated spend for one UTC day.
type DailySummary struct {
	Day     string `json:"day"`
	Tickets int64  `json:"tickets"`
	// InputTokens counts every token billed at the input rate, system prompt included.
	InputTokens  int64            `json:"input_tokens"`
	OutputTokens int64            `json:"output_tokens"`
	TotalCost    float64          `json:"total_cost"`
	Categories   map[string]int64 `json:"categories"`
	Teams        map[string]int64 `json:"teams"`
}

func (l *Ledger) DailySummary(ctx context.Context, day time.Time) (DailySummary, error) {
	dayKey := day.UTC().Format(dayLayout)

	totals, err := l.client.HGetAll(ctx, l.costKey(dayKey)).Result()
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to get daily costs: %w", err)
	}

	categories, err := l.client.HGetAll(ctx, l.categoryKey(dayKey)).Result()
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to get daily categories: %w", err)
	}

	teams, err := l.client.HGetAll(ctx, l.teamKey(dayKey)).Result()
	if err != nil {
		return DailySummary{}, fmt.Errorf("failed to get daily teams: %w", err)
	}

	summary := DailySummary{
		Day:        dayKey,
		Categories: parseCounts(categories),
		Teams:      parseCounts(teams),
	}

	summary.Tickets, _ = strconv.ParseInt(totals[fieldTickets], 10, 64)
	summary.InputTokens, _ = strconv.ParseInt(totals[fieldInputTokens], 10, 64)
	summary.OutputTokens, _ = strconv.ParseInt(totals[fieldOutputTokens], 10, 64)
	summary.TotalCost, _ = strconv.ParseFloat(totals[fieldTotalCost], 64)

	return summary, nil
}

func (l *Ledger) Heartbeat(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Ledger) Close() error {
	return l.client.Close()
}

func parseCounts(values map[string]string) map[string]int64 {
	counts := make(map[string]int64, len(values))

	for key, value := range values {
		count, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		counts[key] = count
	}

	return counts
}
